package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"romgrab/internal/cache"
	"romgrab/internal/catalog"
	"romgrab/internal/fileutil"
	"romgrab/internal/logging"
	"romgrab/internal/services"
	"romgrab/internal/textutil"
)

const maxBoxartBytes = 32 << 20

func (m *Manager) boxartPath(entry catalog.RomEntry, opts Options) string {
	ext := ".jpg"
	if u, err := url.Parse(entry.BoxartURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); e != "" && len(e) <= 5 {
			ext = e
		}
	}
	name := textutil.PathToken(firstNonEmpty(entry.Slug, entry.Title, entry.ID)) + ext
	return filepath.Join(m.root(opts), platformDir(entry), "boxart", name)
}

// runBoxart downloads the cover art for entry. Bytes come through the
// thumbnails cache, so repeated requests for the same artwork skip the
// network. The returned error is only a ledger failure; the task carries its
// own outcome.
func (m *Manager) runBoxart(ctx context.Context, entry catalog.RomEntry, opts Options) (*Task, error) {
	dest := m.boxartPath(entry, opts)
	task := newTask(m.newID(), KindBoxart, entry, dest, m.now())
	ctx = services.WithTaskID(ctx, task.ID)
	logger := logging.WithContext(ctx, m.logger).With(
		logging.String("slug", entry.Slug),
		logging.String("destination", dest),
	)

	unlock, err := m.lock(ctx, dest)
	if err != nil {
		m.fail(task, err)
		return task, m.finish(ctx, logger, task)
	}
	defer unlock()

	if !opts.Force && m.alreadyPresent(ctx, logger, task) {
		task.Skipped = true
		_ = task.transition(StateCompleted)
		return task, m.finish(ctx, logger, task)
	}

	task.Mirror = entry.BoxartURL
	task.MirrorsTried = []string{entry.BoxartURL}
	maxRetries := max(m.cfg.Download.MaxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		_ = task.transition(StateTransferring)
		task.Attempts++
		data, err := m.thumbnail(ctx, entry.BoxartURL)
		if err != nil {
			if ctx.Err() != nil {
				m.cancel(task, ctx.Err())
				return task, m.finish(ctx, logger, task)
			}
			lastErr = err
			logger.Debug("boxart attempt failed", logging.Int("attempt", attempt), logging.Error(err))
			if attempt < maxRetries && m.pause(ctx, task) {
				return task, m.finish(ctx, logger, task)
			}
			continue
		}

		_ = task.transition(StateVerifying)
		if err := fileutil.WriteFileAtomic(dest, data, 0o644); err != nil {
			m.fail(task, services.Wrap(services.ErrTransient, "download", "boxart", "write boxart", err))
			return task, m.finish(ctx, logger, task)
		}
		sum := sha256.Sum256(data)
		task.Bytes, task.SHA256 = int64(len(data)), hex.EncodeToString(sum[:])
		_ = task.transition(StateCompleted)
		return task, m.finish(ctx, logger, task)
	}

	m.fail(task, services.Wrap(services.ErrMirrorExhausted, "download", "boxart",
		fmt.Sprintf("boxart unavailable after %d attempts", task.Attempts), lastErr))
	return task, m.finish(ctx, logger, task)
}

// thumbnail returns the artwork bytes, from cache when fresh.
func (m *Manager) thumbnail(ctx context.Context, rawURL string) ([]byte, error) {
	if m.thumbs == nil {
		return m.fetchThumbnail(ctx, rawURL)
	}
	return m.thumbs.GetOrFetch(ctx, cache.NamespaceThumbnails, rawURL, m.cfg.CacheTTL(string(cache.NamespaceThumbnails)),
		func(ctx context.Context) ([]byte, error) {
			return m.fetchThumbnail(ctx, rawURL)
		})
}

func (m *Manager) fetchThumbnail(ctx context.Context, rawURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeout())
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("boxart http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBoxartBytes+1))
	if err != nil {
		return nil, err
	}
	switch {
	case len(data) == 0:
		return nil, errors.New("boxart response is empty")
	case len(data) > maxBoxartBytes:
		return nil, errors.New("boxart response too large")
	case resp.ContentLength >= 0 && int64(len(data)) != resp.ContentLength:
		return nil, fmt.Errorf("boxart truncated: %d of %d bytes", len(data), resp.ContentLength)
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

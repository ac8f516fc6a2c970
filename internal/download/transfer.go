package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"romgrab/internal/catalog"
	"romgrab/internal/fileutil"
	"romgrab/internal/logging"
	"romgrab/internal/mirror"
	"romgrab/internal/services"
)

var errStalled = errors.New("connection stalled")

// attemptResult is what one transfer attempt produced on disk.
type attemptResult struct {
	path   string
	size   int64
	sha256 string
}

// transfer drives task from pending through probing and the retry loop to a
// terminal state. Each candidate gets max_retries attempts before the next
// one is tried; unreachable hosts are tried last.
func (m *Manager) transfer(ctx context.Context, logger *slog.Logger, task *Task, opts Options) {
	_ = task.transition(StateProbing)
	hosts := task.Entry.HostURLs()
	if len(hosts) == 0 {
		m.fail(task, services.Wrap(services.ErrMirrorExhausted, "download", "probe",
			fmt.Sprintf("%s has no download links", task.Entry.Slug), nil))
		return
	}

	candidates, err := m.ranker.Rank(ctx, hosts)
	if err != nil {
		m.fail(task, err)
		return
	}
	for _, c := range candidates {
		if !c.Reachable() {
			task.ProbeFailures++
			task.Attempts++
		}
	}
	logger.Debug("mirrors probed",
		logging.Int("candidates", len(candidates)),
		logging.Int("probe_failures", task.ProbeFailures),
	)

	maxRetries := max(m.cfg.Download.MaxRetries, 1)
	progress := newProgressTracker(task, opts.Progress, logger)
	var (
		lastErr          error
		integrityFails   int
		transferAttempts int
	)

	for i, candidate := range candidates {
		task.MirrorsTried = append(task.MirrorsTried, candidate.URL)
		for attempt := 1; attempt <= maxRetries; attempt++ {
			// Nothing is left to wait for after the final attempt.
			final := i == len(candidates)-1 && attempt == maxRetries
			if err := task.transition(StateTransferring); err != nil {
				m.fail(task, services.Wrap(services.ErrTransient, "download", "transfer", "state machine", err))
				return
			}
			task.Attempts++
			transferAttempts++
			task.Mirror = candidate.URL
			progress.reset()

			result, err := m.fetch(ctx, task, candidate, progress)
			if err != nil {
				if ctx.Err() != nil {
					m.cancel(task, ctx.Err())
					return
				}
				lastErr = err
				logging.WarnWithContext(logger, "transfer attempt failed", "transfer_failed",
					logging.String("mirror", candidate.Host),
					logging.Int("attempt", attempt),
					logging.Error(err),
					logging.String(logging.FieldImpact, "retrying"),
				)
				if !final && m.pause(ctx, task) {
					return
				}
				continue
			}

			_ = task.transition(StateVerifying)
			if err := verify(task.Entry, result); err != nil {
				fileutil.RemoveQuietly(result.path)
				lastErr = err
				integrityFails++
				logging.WarnWithContext(logger, "verification failed", "integrity_mismatch",
					logging.String("mirror", candidate.Host),
					logging.Int("attempt", attempt),
					logging.Error(err),
					logging.String(logging.FieldImpact, "partial file discarded; retrying"),
				)
				if !final && m.pause(ctx, task) {
					return
				}
				continue
			}

			if err := fileutil.MoveFile(result.path, task.Destination); err != nil {
				fileutil.RemoveQuietly(result.path)
				m.fail(task, services.Wrap(services.ErrTransient, "download", "place", "move into place", err))
				return
			}
			task.Bytes, task.SHA256 = result.size, result.sha256
			_ = task.transition(StateCompleted)
			return
		}
	}

	marker := services.ErrMirrorExhausted
	if transferAttempts > 0 && integrityFails == transferAttempts {
		marker = services.ErrIntegrityMismatch
	}
	m.fail(task, services.Wrap(marker, "download", "transfer",
		fmt.Sprintf("%d attempts across %d mirrors failed", task.Attempts, len(task.MirrorsTried)), lastErr))
}

// pause waits the retry delay and reports whether the task was cancelled.
func (m *Manager) pause(ctx context.Context, task *Task) bool {
	if err := catalog.SleepWithContext(ctx, m.cfg.DownloadRetryDelay()); err != nil {
		m.cancel(task, err)
		return true
	}
	return false
}

func (m *Manager) cancel(task *Task, cause error) {
	m.fail(task, services.Wrap(services.ErrCancelled, "download", string(task.State), "download cancelled", cause))
}

// partPath is the hidden temporary file next to the destination.
func partPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".part")
}

// fetch performs one attempt against candidate. It uses parallel ranges when
// the size is known, the host honours ranges, and the file is large enough;
// otherwise it streams the whole body on one connection.
func (m *Manager) fetch(ctx context.Context, task *Task, candidate mirror.Candidate, progress *progressTracker) (attemptResult, error) {
	part := partPath(task.Destination)
	if err := os.MkdirAll(filepath.Dir(part), 0o755); err != nil {
		return attemptResult{}, fmt.Errorf("create destination directory: %w", err)
	}

	size := task.Entry.Size()
	if size <= 0 {
		size = candidate.Size
	}
	progress.setTotal(size)
	ranges := max(m.cfg.Download.ParallelRanges, 1)
	if size > 0 && candidate.AcceptsRanges && ranges > 1 && size >= m.cfg.Download.MinRangeBytes {
		return m.fetchRanges(ctx, candidate.URL, part, size, ranges, progress)
	}
	return m.fetchSingle(ctx, candidate.URL, part, progress)
}

func (m *Manager) fetchSingle(ctx context.Context, url, part string, progress *progressTracker) (attemptResult, error) {
	out, err := os.Create(part)
	if err != nil {
		return attemptResult{}, err
	}
	hasher := sha256.New()
	n, err := m.stream(ctx, url, "", io.MultiWriter(out, hasher), progress)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fileutil.RemoveQuietly(part)
		return attemptResult{}, err
	}
	return attemptResult{path: part, size: n, sha256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// fetchRanges downloads count contiguous ranges concurrently into separate
// part files, then concatenates them in order.
func (m *Manager) fetchRanges(ctx context.Context, url, part string, size int64, count int, progress *progressTracker) (attemptResult, error) {
	bounds := splitRanges(size, count)
	parts := make([]string, len(bounds))
	for i := range bounds {
		parts[i] = part + "." + strconv.Itoa(i)
	}
	defer fileutil.RemoveQuietly(parts...)

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bounds {
		g.Go(func() error {
			out, err := os.Create(parts[i])
			if err != nil {
				return err
			}
			header := fmt.Sprintf("bytes=%d-%d", b.start, b.end)
			n, err := m.stream(gctx, url, header, out, progress)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("range %d: %w", i, err)
			}
			if want := b.end - b.start + 1; n != want {
				return fmt.Errorf("range %d: got %d bytes, want %d", i, n, want)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return attemptResult{}, err
	}

	total, sum, err := fileutil.Concat(part, parts)
	if err != nil {
		return attemptResult{}, fmt.Errorf("reassemble ranges: %w", err)
	}
	return attemptResult{path: part, size: total, sha256: sum}, nil
}

type byteRange struct {
	start, end int64
}

// splitRanges divides size bytes into at most count inclusive ranges.
func splitRanges(size int64, count int) []byteRange {
	n := int64(max(count, 1))
	if n > size {
		n = max(size, 1)
	}
	chunk := size / n
	out := make([]byteRange, 0, n)
	var start int64
	for i := int64(0); i < n; i++ {
		end := start + chunk - 1
		if i == n-1 {
			end = size - 1
		}
		out = append(out, byteRange{start: start, end: end})
		start = end + 1
	}
	return out
}

// stream copies one response body into w. A connection that delivers no
// bytes for connection_timeout is abandoned.
func (m *Manager) stream(ctx context.Context, url, rangeHeader string, w io.Writer, progress *progressTracker) (int64, error) {
	timeout := m.cfg.ConnectionTimeout()
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	watchdog := time.AfterFunc(timeout, func() { cancel(errStalled) })
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	if ua := strings.TrimSpace(m.cfg.Catalog.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, stallCause(reqCtx, err)
	}
	defer resp.Body.Close()

	switch {
	case rangeHeader != "" && resp.StatusCode != http.StatusPartialContent:
		return 0, fmt.Errorf("range request answered with http %d", resp.StatusCode)
	case rangeHeader == "" && resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("http %d", resp.StatusCode)
	}

	body := &watchdogReader{r: resp.Body, timer: watchdog, timeout: timeout}
	n, err := io.Copy(w, io.TeeReader(body, progress))
	if err != nil {
		return n, stallCause(reqCtx, err)
	}
	return n, nil
}

func stallCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, errStalled) {
		return fmt.Errorf("%w: %w", errStalled, err)
	}
	return err
}

// watchdogReader pushes the stall deadline forward whenever bytes arrive.
type watchdogReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (w *watchdogReader) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	if n > 0 {
		w.timer.Reset(w.timeout)
	}
	return n, err
}

// verify checks the assembled file against the catalog metadata. The
// expected size must match exactly when known; otherwise the file must be
// non-empty. The hash is checked when the catalog provides one.
func verify(entry catalog.RomEntry, result attemptResult) error {
	if want := entry.Size(); want > 0 && result.size != want {
		return services.Wrap(services.ErrIntegrityMismatch, "download", "verify",
			fmt.Sprintf("size %d, expected %d", result.size, want), nil)
	}
	if result.size == 0 {
		return services.Wrap(services.ErrIntegrityMismatch, "download", "verify", "downloaded file is empty", nil)
	}
	if want := entry.SHA256(); want != "" && !strings.EqualFold(result.sha256, want) {
		return services.Wrap(services.ErrIntegrityMismatch, "download", "verify",
			fmt.Sprintf("sha256 %s, expected %s", result.sha256, want), nil)
	}
	return nil
}

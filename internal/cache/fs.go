package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"romgrab/internal/logging"
)

const entrySuffix = ".entry"

// FSBackend stores each record as <root>/<namespace>/<sha256(key)>.entry.
// Writes go through a temp file and rename so readers never see a torn record.
type FSBackend struct {
	fs       afero.Fs
	root     string
	maxBytes int64
	logger   *slog.Logger

	pruneMu sync.Mutex
}

// NewFSBackend creates a backend rooted at root. maxBytes bounds the total
// size of all records; 0 disables pruning.
func NewFSBackend(fsys afero.Fs, root string, maxBytes int64, logger *slog.Logger) (*FSBackend, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("cache directory is empty")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FSBackend{
		fs:       fsys,
		root:     root,
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(logger, "cache-fs"),
	}, nil
}

func (b *FSBackend) path(ns Namespace, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.root, string(ns), hex.EncodeToString(sum[:])+entrySuffix)
}

func (b *FSBackend) Load(_ context.Context, ns Namespace, key string) ([]byte, error) {
	data, err := afero.ReadFile(b.fs, b.path(ns, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return data, nil
}

func (b *FSBackend) Save(_ context.Context, ns Namespace, key string, data []byte, _ time.Duration) error {
	target := b.path(ns, key)
	dir := filepath.Dir(target)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}
	tmp, err := afero.TempFile(b.fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := b.fs.Rename(tmpName, target); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("commit record: %w", err)
	}
	if b.maxBytes > 0 {
		b.prune()
	}
	return nil
}

func (b *FSBackend) Delete(_ context.Context, ns Namespace, key string) error {
	if err := b.fs.Remove(b.path(ns, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *FSBackend) Clear(_ context.Context, ns Namespace) (int, error) {
	removed := 0
	for _, entry := range b.entries(ns) {
		if err := b.fs.Remove(entry.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (b *FSBackend) Close() error { return nil }

type fileEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func (b *FSBackend) entries(ns Namespace) []fileEntry {
	namespaces := []Namespace{ns}
	if ns == "" {
		namespaces = Namespaces()
	}
	var out []fileEntry
	for _, n := range namespaces {
		dir := filepath.Join(b.root, string(n))
		infos, err := afero.ReadDir(b.fs, dir)
		if err != nil {
			continue
		}
		for _, info := range infos {
			if info.IsDir() || !strings.HasSuffix(info.Name(), entrySuffix) {
				continue
			}
			out = append(out, fileEntry{
				path:    filepath.Join(dir, info.Name()),
				size:    info.Size(),
				modTime: info.ModTime(),
			})
		}
	}
	return out
}

// prune removes the least recently written records until the total size
// fits within maxBytes.
func (b *FSBackend) prune() {
	b.pruneMu.Lock()
	defer b.pruneMu.Unlock()

	entries := b.entries("")
	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= b.maxBytes {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })
	removed := 0
	for _, e := range entries {
		if total <= b.maxBytes {
			break
		}
		if err := b.fs.Remove(e.path); err != nil {
			continue
		}
		total -= e.size
		removed++
	}
	b.logger.Debug("cache pruned", logging.Int("records", removed), logging.Int64("bytes", total))
}

package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"romgrab/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retry and probe delays are shortened so failure paths finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ROMDir = filepath.Join(base, "roms")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.HistoryDir = filepath.Join(base, "history")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Catalog.BaseURL = "http://127.0.0.1:0"
	cfgVal.Catalog.RetryDelayMillis = 1
	cfgVal.Catalog.RequestsPerSecond = 0
	cfgVal.Catalog.TimeoutSeconds = 5
	cfgVal.Download.RetryDelayMillis = 1
	cfgVal.Download.ProbeTimeoutSeconds = 2
	cfgVal.Download.ConnectionTimeoutSeconds = 5
	cfgVal.Download.ProbeBytes = 1024
	cfgVal.Download.MinRangeBytes = 4096

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCatalogURL points the catalog client at a test server.
func WithCatalogURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.BaseURL = url
	}
}

// WithPageSize sets the default results per page.
func WithPageSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Search.MaxResultsPerPage = size
	}
}

// WithRetries sets the per-mirror attempt budget.
func WithRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.MaxRetries = n
	}
}

// WithConcurrency caps how many batch downloads run at once.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.MaxConcurrentDownloads = n
	}
}

// WithRetryDelay sets the pause between download attempts.
func WithRetryDelay(d time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.RetryDelayMillis = int(d.Milliseconds())
	}
}

// WithParallelRanges sets the ranged connection count and minimum size for
// ranged transfers.
func WithParallelRanges(n int, minBytes int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.ParallelRanges = n
		b.cfg.Download.MinRangeBytes = minBytes
	}
}

// WithoutBoxart disables boxart downloads by default.
func WithoutBoxart() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.IncludeBoxart = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ROMDir)
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"romgrab/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "romgrab", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.ROMDir != filepath.Join(tempHome, "ROMs") {
		t.Fatalf("unexpected rom dir: %q", cfg.Paths.ROMDir)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "romgrab") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.HistoryPath() != filepath.Join(tempHome, ".local", "share", "romgrab", "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.Catalog.BaseURL != "https://api.crocdb.net" {
		t.Fatalf("unexpected base url: %q", cfg.Catalog.BaseURL)
	}
	if cfg.Search.MaxResultsPerPage != 20 {
		t.Fatalf("unexpected page size: %d", cfg.Search.MaxResultsPerPage)
	}
	if !cfg.Download.IncludeBoxart {
		t.Fatal("expected boxart enabled by default")
	}
}

func TestLoadCustomFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
rom_dir = "~/games"

[catalog]
base_url = "http://localhost:9000/"

[cache]
backend = "BADGER"
search_ttl_seconds = 0

[search]
preferred_platforms = [" SNES ", "gba", "snes"]

[download]
max_concurrent_downloads = 4
preferred_hosts = ["Mirror.Example", ""]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing file at %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.ROMDir != filepath.Join(tempHome, "games") {
		t.Fatalf("unexpected rom dir %q", cfg.Paths.ROMDir)
	}
	if cfg.Catalog.BaseURL != "http://localhost:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Catalog.BaseURL)
	}
	if cfg.Cache.Backend != "badger" {
		t.Fatalf("expected normalized backend, got %q", cfg.Cache.Backend)
	}
	if cfg.CacheTTL("search-results") != 0 {
		t.Fatalf("expected search caching disabled, got %v", cfg.CacheTTL("search-results"))
	}
	if cfg.CacheTTL("rom-info") != 24*time.Hour {
		t.Fatalf("unexpected rom-info ttl %v", cfg.CacheTTL("rom-info"))
	}
	if cfg.Download.MaxConcurrentDownloads != 4 {
		t.Fatalf("unexpected concurrency %d", cfg.Download.MaxConcurrentDownloads)
	}
	if got := strings.Join(cfg.Search.PreferredPlatforms, ","); got != "snes,gba" {
		t.Fatalf("unexpected preferred platforms %q", got)
	}
	if got := strings.Join(cfg.Download.PreferredHosts, ","); got != "mirror.example" {
		t.Fatalf("unexpected preferred hosts %q", got)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[download]\nmax_paralel = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
	if !strings.Contains(err.Error(), "max_paralel") {
		t.Fatalf("expected offending key in error, got %v", err)
	}
}

func TestEnvOverridesBaseURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ROMGRAB_API_URL", "http://127.0.0.1:8080")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.BaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("expected env override, got %q", cfg.Catalog.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"page ceiling", func(c *config.Config) { c.Search.MaxResultsPerPage = 101 }, "max_results_per_page"},
		{"backend", func(c *config.Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"negative ttl", func(c *config.Config) { c.Cache.ThumbnailsTTLSeconds = -1 }, "thumbnails_ttl_seconds"},
		{"base url", func(c *config.Config) { c.Catalog.BaseURL = "not a url" }, "catalog.base_url"},
		{"retries", func(c *config.Config) { c.Download.MaxRetries = 0 }, "download.max_retries"},
		{"concurrency", func(c *config.Config) { c.Download.MaxConcurrentDownloads = 0 }, "max_concurrent_downloads"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestSampleConfigParsesStrictly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open sample: %v", err)
	}
	defer file.Close()

	cfg := config.Default()
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Download.ParallelRanges != 4 {
		t.Fatalf("unexpected sample parallel ranges %d", cfg.Download.ParallelRanges)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.HistoryDir = filepath.Join(base, "history")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.HistoryDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
}

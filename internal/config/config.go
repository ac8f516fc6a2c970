package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ROMDir     string `toml:"rom_dir"`
	CacheDir   string `toml:"cache_dir"`
	HistoryDir string `toml:"history_dir"`
	LogDir     string `toml:"log_dir"`
}

// Catalog contains configuration for the remote ROM catalog API.
type Catalog struct {
	BaseURL                 string  `toml:"base_url"`
	TimeoutSeconds          int     `toml:"timeout_seconds"`
	MaxRetries              int     `toml:"max_retries"`
	RetryDelayMillis        int     `toml:"retry_delay_ms"`
	RequestsPerSecond       float64 `toml:"requests_per_second"`
	BreakerFailureThreshold int     `toml:"breaker_failure_threshold"`
	BreakerCooldownSeconds  int     `toml:"breaker_cooldown_seconds"`
	UpstreamPageSize        int     `toml:"upstream_page_size"`
	UserAgent               string  `toml:"user_agent"`
}

// Cache contains configuration for the response cache.
type Cache struct {
	Backend              string `toml:"backend"`
	MaxSizeMB            int    `toml:"max_size_mb"`
	RedisAddr            string `toml:"redis_addr"`
	RedisDB              int    `toml:"redis_db"`
	RedisPrefix          string `toml:"redis_prefix"`
	SearchTTLSeconds     int    `toml:"search_ttl_seconds"`
	ROMInfoTTLSeconds    int    `toml:"rom_info_ttl_seconds"`
	ThumbnailsTTLSeconds int    `toml:"thumbnails_ttl_seconds"`
	PlatformsTTLSeconds  int    `toml:"platforms_ttl_seconds"`
	RegionsTTLSeconds    int    `toml:"regions_ttl_seconds"`
}

// Search contains result paging configuration.
type Search struct {
	MaxResultsPerPage  int      `toml:"max_results_per_page"`
	PreferredPlatforms []string `toml:"preferred_platforms"`
	PreferredRegions   []string `toml:"preferred_regions"`
}

// Download contains configuration for transfers.
type Download struct {
	MaxConcurrentDownloads   int      `toml:"max_concurrent_downloads"`
	MaxRetries               int      `toml:"max_retries"`
	ParallelRanges           int      `toml:"parallel_ranges"`
	MinRangeBytes            int64    `toml:"min_range_bytes"`
	ConnectionTimeoutSeconds int      `toml:"connection_timeout_seconds"`
	ProbeTimeoutSeconds      int      `toml:"probe_timeout_seconds"`
	ProbeBytes               int64    `toml:"probe_bytes"`
	RetryDelayMillis         int      `toml:"retry_delay_ms"`
	IncludeBoxart            bool     `toml:"include_boxart"`
	PreferredHosts           []string `toml:"preferred_hosts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains configuration for the prometheus textfile export.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for romgrab.
//
// Configuration sections by subsystem:
//   - Paths: ROM, cache, history, and log directories
//   - Catalog: remote API endpoint, retries, rate limit, circuit breaker
//   - Cache: backend selection, size bound, per-namespace TTLs
//   - Search: page size
//   - Download: concurrency, retries, ranged transfer, probing
//   - Logging: log format and level
//   - Metrics: optional prometheus textfile output
type Config struct {
	Paths    Paths    `toml:"paths"`
	Catalog  Catalog  `toml:"catalog"`
	Cache    Cache    `toml:"cache"`
	Search   Search   `toml:"search"`
	Download Download `toml:"download"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Unknown keys are
// rejected so typos surface instead of silently falling back to defaults. The
// returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: unknown keys:\n%s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("romgrab.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache, history, and log directories and
// checks they are writable. The ROM directory is created lazily per platform
// on first download.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.HistoryDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
		if err := unix.Access(dir, unix.W_OK); err != nil {
			return fmt.Errorf("directory %q is not writable: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath is the SQLite ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.HistoryDir, "history.db")
}

// LockDir holds per-destination download locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.CacheDir, "locks")
}

// CacheTTL returns the configured lifetime for a cache namespace. Unknown
// namespaces report zero, which disables caching.
func (c *Config) CacheTTL(namespace string) time.Duration {
	var seconds int
	switch namespace {
	case "search-results":
		seconds = c.Cache.SearchTTLSeconds
	case "rom-info":
		seconds = c.Cache.ROMInfoTTLSeconds
	case "thumbnails":
		seconds = c.Cache.ThumbnailsTTLSeconds
	case "platforms":
		seconds = c.Cache.PlatformsTTLSeconds
	case "regions":
		seconds = c.Cache.RegionsTTLSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

func (c *Config) CatalogRetryDelay() time.Duration {
	return time.Duration(c.Catalog.RetryDelayMillis) * time.Millisecond
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Catalog.BreakerCooldownSeconds) * time.Second
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Download.ProbeTimeoutSeconds) * time.Second
}

func (c *Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.Download.ConnectionTimeoutSeconds) * time.Second
}

func (c *Config) DownloadRetryDelay() time.Duration {
	return time.Duration(c.Download.RetryDelayMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

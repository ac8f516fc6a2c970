package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	parsed, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("catalog.base_url must be an absolute URL, got %q", c.Catalog.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("catalog.base_url scheme must be http or https, got %q", parsed.Scheme)
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		return errors.New("catalog.timeout_seconds must be positive")
	}
	if c.Catalog.MaxRetries < 0 {
		return errors.New("catalog.max_retries must be >= 0")
	}
	if c.Catalog.RetryDelayMillis < 0 {
		return errors.New("catalog.retry_delay_ms must be >= 0")
	}
	if c.Catalog.RequestsPerSecond < 0 {
		return errors.New("catalog.requests_per_second must be >= 0 (0 disables pacing)")
	}
	if c.Catalog.BreakerFailureThreshold < 0 {
		return errors.New("catalog.breaker_failure_threshold must be >= 0 (0 disables the breaker)")
	}
	if c.Catalog.BreakerCooldownSeconds <= 0 {
		return errors.New("catalog.breaker_cooldown_seconds must be positive")
	}
	if c.Catalog.UpstreamPageSize <= 0 || c.Catalog.UpstreamPageSize > MaxResultsPerPage {
		return fmt.Errorf("catalog.upstream_page_size must be between 1 and %d", MaxResultsPerPage)
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "fs", "badger":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr must be set when cache.backend is redis")
		}
		if c.Cache.RedisDB < 0 {
			return errors.New("cache.redis_db must be >= 0")
		}
	default:
		return fmt.Errorf("cache.backend must be one of fs, badger, redis; got %q", c.Cache.Backend)
	}
	if c.Cache.MaxSizeMB < 0 {
		return errors.New("cache.max_size_mb must be >= 0 (0 disables pruning)")
	}
	ttls := map[string]int{
		"cache.search_ttl_seconds":     c.Cache.SearchTTLSeconds,
		"cache.rom_info_ttl_seconds":   c.Cache.ROMInfoTTLSeconds,
		"cache.thumbnails_ttl_seconds": c.Cache.ThumbnailsTTLSeconds,
		"cache.platforms_ttl_seconds":  c.Cache.PlatformsTTLSeconds,
		"cache.regions_ttl_seconds":    c.Cache.RegionsTTLSeconds,
	}
	for key, value := range ttls {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0 (0 disables caching)", key)
		}
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.MaxResultsPerPage <= 0 || c.Search.MaxResultsPerPage > MaxResultsPerPage {
		return fmt.Errorf("search.max_results_per_page must be between 1 and %d", MaxResultsPerPage)
	}
	return nil
}

func (c *Config) validateDownload() error {
	d := c.Download
	if d.MaxConcurrentDownloads <= 0 {
		return errors.New("download.max_concurrent_downloads must be positive")
	}
	if d.MaxRetries <= 0 {
		return errors.New("download.max_retries must be positive")
	}
	if d.ParallelRanges <= 0 {
		return errors.New("download.parallel_ranges must be positive")
	}
	if d.MinRangeBytes <= 0 {
		return errors.New("download.min_range_bytes must be positive")
	}
	if d.ConnectionTimeoutSeconds <= 0 {
		return errors.New("download.connection_timeout_seconds must be positive")
	}
	if d.ProbeTimeoutSeconds <= 0 {
		return errors.New("download.probe_timeout_seconds must be positive")
	}
	if d.ProbeBytes <= 0 {
		return errors.New("download.probe_bytes must be positive")
	}
	if d.RetryDelayMillis < 0 {
		return errors.New("download.retry_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeCache()
	c.Search.PreferredPlatforms = normalizeList(c.Search.PreferredPlatforms)
	c.Search.PreferredRegions = normalizeList(c.Search.PreferredRegions)
	c.Download.PreferredHosts = normalizeList(c.Download.PreferredHosts)
	c.normalizeLogging()
	c.Metrics.TextfilePath = strings.TrimSpace(c.Metrics.TextfilePath)
	if c.Metrics.TextfilePath != "" {
		expanded, err := expandPath(c.Metrics.TextfilePath)
		if err != nil {
			return fmt.Errorf("metrics.textfile_path: %w", err)
		}
		c.Metrics.TextfilePath = expanded
	}
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.rom_dir", &c.Paths.ROMDir, defaultROMDir},
		{"paths.cache_dir", &c.Paths.CacheDir, defaultCacheDir},
		{"paths.history_dir", &c.Paths.HistoryDir, defaultHistoryDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	if value, ok := os.LookupEnv("ROMGRAB_API_URL"); ok && strings.TrimSpace(value) != "" {
		c.Catalog.BaseURL = value
	}
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	c.Catalog.UserAgent = strings.TrimSpace(c.Catalog.UserAgent)
	if c.Catalog.UserAgent == "" {
		c.Catalog.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeCache() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if value, ok := os.LookupEnv("ROMGRAB_REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Cache.RedisAddr = strings.TrimSpace(value)
	}
	c.Cache.RedisAddr = strings.TrimSpace(c.Cache.RedisAddr)
	c.Cache.RedisPrefix = strings.TrimSpace(c.Cache.RedisPrefix)
	if c.Cache.RedisPrefix == "" {
		c.Cache.RedisPrefix = defaultRedisPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeList lowercases and trims entries, dropping blanks and repeats
// while keeping the first occurrence's position.
func normalizeList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

package config

const (
	defaultConfigPath = "~/.config/romgrab/config.toml"

	defaultROMDir     = "~/ROMs"
	defaultCacheDir   = "~/.cache/romgrab"
	defaultHistoryDir = "~/.local/share/romgrab"
	defaultLogDir     = "~/.local/share/romgrab/logs"

	defaultCatalogBaseURL          = "https://api.crocdb.net"
	defaultCatalogTimeoutSeconds   = 30
	defaultCatalogMaxRetries       = 3
	defaultCatalogRetryDelayMillis = 1000
	defaultRequestsPerSecond       = 5
	defaultBreakerThreshold        = 5
	defaultBreakerCooldownSeconds  = 30
	defaultUpstreamPageSize        = 50
	defaultUserAgent               = "romgrab/dev"

	defaultCacheBackend  = "fs"
	defaultCacheMaxSize  = 100
	defaultRedisAddr     = "127.0.0.1:6379"
	defaultRedisPrefix   = "romgrab"
	defaultSearchTTL     = 3600
	defaultROMInfoTTL    = 86400
	defaultThumbnailsTTL = 604800
	defaultPlatformsTTL  = 604800
	defaultRegionsTTL    = 604800

	defaultResultsPerPage = 20
	// MaxResultsPerPage is the hard page-size ceiling regardless of configuration.
	MaxResultsPerPage = 100

	defaultMaxConcurrentDownloads = 2
	defaultDownloadMaxRetries     = 3
	defaultParallelRanges         = 4
	defaultMinRangeBytes          = 1 << 20
	defaultConnectionTimeout      = 30
	defaultProbeTimeout           = 5
	defaultProbeBytes             = 256 << 10
	defaultDownloadRetryDelay     = 500

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ROMDir:     defaultROMDir,
			CacheDir:   defaultCacheDir,
			HistoryDir: defaultHistoryDir,
			LogDir:     defaultLogDir,
		},
		Catalog: Catalog{
			BaseURL:                 defaultCatalogBaseURL,
			TimeoutSeconds:          defaultCatalogTimeoutSeconds,
			MaxRetries:              defaultCatalogMaxRetries,
			RetryDelayMillis:        defaultCatalogRetryDelayMillis,
			RequestsPerSecond:       defaultRequestsPerSecond,
			BreakerFailureThreshold: defaultBreakerThreshold,
			BreakerCooldownSeconds:  defaultBreakerCooldownSeconds,
			UpstreamPageSize:        defaultUpstreamPageSize,
			UserAgent:               defaultUserAgent,
		},
		Cache: Cache{
			Backend:              defaultCacheBackend,
			MaxSizeMB:            defaultCacheMaxSize,
			RedisAddr:            defaultRedisAddr,
			RedisPrefix:          defaultRedisPrefix,
			SearchTTLSeconds:     defaultSearchTTL,
			ROMInfoTTLSeconds:    defaultROMInfoTTL,
			ThumbnailsTTLSeconds: defaultThumbnailsTTL,
			PlatformsTTLSeconds:  defaultPlatformsTTL,
			RegionsTTLSeconds:    defaultRegionsTTL,
		},
		Search: Search{
			MaxResultsPerPage: defaultResultsPerPage,
		},
		Download: Download{
			MaxConcurrentDownloads:   defaultMaxConcurrentDownloads,
			MaxRetries:               defaultDownloadMaxRetries,
			ParallelRanges:           defaultParallelRanges,
			MinRangeBytes:            defaultMinRangeBytes,
			ConnectionTimeoutSeconds: defaultConnectionTimeout,
			ProbeTimeoutSeconds:      defaultProbeTimeout,
			ProbeBytes:               defaultProbeBytes,
			RetryDelayMillis:         defaultDownloadRetryDelay,
			IncludeBoxart:            true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

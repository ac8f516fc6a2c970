package preflight

import (
	"context"

	"romgrab/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("ROM directory", cfg.Paths.ROMDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("History directory", cfg.Paths.HistoryDir),
		CheckCatalog(ctx, cfg.Catalog.BaseURL, cfg.Catalog.UserAgent),
	}

	if cfg.Cache.Backend == "redis" {
		results = append(results, CheckRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB))
	}

	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

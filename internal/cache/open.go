package cache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"romgrab/internal/config"
	"romgrab/internal/metrics"
)

// Open builds a Store from the [cache] configuration.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Cache.Backend {
	case "", "fs":
		backend, err = NewFSBackend(afero.NewOsFs(), filepath.Join(cfg.Paths.CacheDir, "responses"), int64(cfg.Cache.MaxSizeMB)<<20, logger)
	case "badger":
		backend, err = OpenBadger(filepath.Join(cfg.Paths.CacheDir, "badger"))
	case "redis":
		backend, err = DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.RedisPrefix)
	default:
		err = fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, WithLogger(logger), WithMetrics(m)), nil
}

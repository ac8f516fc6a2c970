package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"romgrab/internal/logging"
	"romgrab/internal/metrics"
	"romgrab/internal/services"
)

// ErrMiss is returned by backends when no record exists for a key.
var ErrMiss = errors.New("cache miss")

// Backend persists encoded records. Implementations must be safe for
// concurrent use and must make Save atomic with respect to Load.
type Backend interface {
	Load(ctx context.Context, ns Namespace, key string) ([]byte, error)
	Save(ctx context.Context, ns Namespace, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, ns Namespace, key string) error
	// Clear removes every record in ns, or in all namespaces when ns is empty,
	// and reports how many were removed.
	Clear(ctx context.Context, ns Namespace) (int, error)
	Close() error
}

// FetchFunc produces the payload for a missing or expired key.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Store layers TTL semantics and single-flight fetching over a Backend.
// Returned payloads are shared between callers and must not be modified.
type Store struct {
	backend Backend
	group   singleflight.Group
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logging.NewComponentLogger(logger, "cache")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New wraps backend in a Store.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  logging.NewComponentLogger(nil, "cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the payload when a fresh record exists. Expired and unreadable
// records are evicted and reported as misses.
func (s *Store) Get(ctx context.Context, ns Namespace, key string) ([]byte, bool) {
	return s.lookup(ctx, ns, key, 0)
}

func (s *Store) lookup(ctx context.Context, ns Namespace, key string, limit time.Duration) ([]byte, bool) {
	data, err := s.backend.Load(ctx, ns, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.logger.Debug("cache read failed; treating as miss",
				logging.String("namespace", string(ns)),
				logging.Error(err),
			)
		}
		s.metrics.CacheLookup(string(ns), "miss")
		return nil, false
	}

	record, err := decode(data)
	if err == nil && (record.Namespace != ns || record.Key != key) {
		err = fmt.Errorf("%w: record belongs to %s/%q", errCorrupt, record.Namespace, record.Key)
	}
	if err != nil {
		logging.WarnWithContext(s.logger, "discarding corrupt cache record", "cache_corrupt",
			logging.String("namespace", string(ns)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "value will be fetched again from the catalog"),
		)
		s.evict(ctx, ns, key)
		s.metrics.CacheLookup(string(ns), "corrupt")
		return nil, false
	}
	if record.Expired(s.now(), limit) {
		s.evict(ctx, ns, key)
		s.metrics.CacheLookup(string(ns), "expired")
		return nil, false
	}
	s.metrics.CacheLookup(string(ns), "hit")
	return record.Payload, true
}

// Put stores payload under key. A non-positive ttl disables caching and Put
// does nothing.
func (s *Store) Put(ctx context.Context, ns Namespace, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := encode(Record{Namespace: ns, Key: key, CreatedAt: s.now(), TTL: ttl, Payload: payload})
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, ns, key, data, ttl); err != nil {
		return fmt.Errorf("cache save %s: %w", ns, err)
	}
	return nil
}

// GetOrFetch returns the cached payload or runs fetch, storing its result.
// Concurrent callers for the same key share one fetch and its outcome. A
// failed fetch is never cached. Cached records older than ttl count as
// expired even when they were stored with a longer one.
func (s *Store) GetOrFetch(ctx context.Context, ns Namespace, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	if ttl > 0 {
		if payload, ok := s.lookup(ctx, ns, key, ttl); ok {
			return payload, nil
		}
	}

	flightKey := string(ns) + "\x00" + key
	for {
		ch := s.group.DoChan(flightKey, func() (any, error) {
			if ttl > 0 {
				if payload, ok := s.lookup(ctx, ns, key, ttl); ok {
					return payload, nil
				}
			}
			payload, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			if err := s.Put(ctx, ns, key, payload, ttl); err != nil {
				logging.WarnWithContext(s.logger, "cache write failed", "cache_write_failed",
					logging.String("namespace", string(ns)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "next lookup will fetch again"),
				)
			}
			return payload, nil
		})

		select {
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrCancelled, "cache", string(ns), "", ctx.Err())
		case res := <-ch:
			// The shared fetch ran under another caller's context; if that
			// caller went away, try again under ours.
			if res.Err != nil && res.Shared && errors.Is(res.Err, context.Canceled) && ctx.Err() == nil {
				continue
			}
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.([]byte), nil
		}
	}
}

// Clear removes every record in ns, or all records when ns is empty.
func (s *Store) Clear(ctx context.Context, ns Namespace) (int, error) {
	n, err := s.backend.Clear(ctx, ns)
	if err != nil {
		return n, fmt.Errorf("cache clear: %w", err)
	}
	s.logger.Info("cache cleared", logging.String("namespace", nsLabel(ns)), logging.Int("records", n))
	return n, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) evict(ctx context.Context, ns Namespace, key string) {
	if err := s.backend.Delete(ctx, ns, key); err != nil && !errors.Is(err, ErrMiss) {
		s.logger.Debug("cache evict failed", logging.String("namespace", string(ns)), logging.Error(err))
	}
}

func nsLabel(ns Namespace) string {
	if ns == "" {
		return "all"
	}
	return string(ns)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisScanCount = 500

// RedisBackend stores records under "<prefix>:cache:<namespace>:<key>" with
// a server-side expiry matching the logical TTL.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "romgrab"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// DialRedis connects to addr and verifies the server answers PING.
func DialRedis(ctx context.Context, addr string, db int, prefix string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis cache %s: %w", addr, err)
	}
	return NewRedisBackend(client, prefix), nil
}

func (b *RedisBackend) key(ns Namespace, key string) string {
	return b.prefix + ":cache:" + string(ns) + ":" + key
}

func (b *RedisBackend) pattern(ns Namespace) string {
	if ns == "" {
		return b.prefix + ":cache:*"
	}
	return b.prefix + ":cache:" + string(ns) + ":*"
}

func (b *RedisBackend) Load(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (b *RedisBackend) Save(ctx context.Context, ns Namespace, key string, data []byte, ttl time.Duration) error {
	return b.client.Set(ctx, b.key(ns, key), data, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, ns Namespace, key string) error {
	return b.client.Del(ctx, b.key(ns, key)).Err()
}

func (b *RedisBackend) Clear(ctx context.Context, ns Namespace) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.pattern(ns), redisScanCount).Result()
		if err != nil {
			return removed, fmt.Errorf("scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := b.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete cache keys: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

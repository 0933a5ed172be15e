// Package cache memoises analytics results, optionally in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/coachlens/pkg/metrics"
)

// Sentinel errors.
var (
	ErrCacheMiss       = errors.New("cache: key not found")
	ErrCacheConnection = errors.New("cache: connection failed")
	ErrCacheKeyEmpty   = errors.New("cache: key cannot be empty")
	ErrSerialization   = errors.New("cache: serialization failed")
)

// Key prefixes and names for cached analytics.
const (
	Prefix           = "coachlens:"
	KeyCoaches       = Prefix + "coaches"
	KeyEffectiveness = Prefix + "effectiveness"
	KeyCohorts       = Prefix + "cohorts"
)

// AnalyticsKeys lists every key derived from interventions and history.
func AnalyticsKeys() []string {
	return []string{KeyCoaches, KeyEffectiveness, KeyCohorts}
}

// Cache stores JSON-encodable values by key.
type Cache interface {
	// Get decodes the value at key into dst. Returns ErrCacheMiss when absent.
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Config holds Redis connection settings. An empty Addr disables Redis.
type Config struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	TTL          time.Duration `koanf:"ttl"`
}

// DefaultConfig returns settings with Redis disabled.
func DefaultConfig() Config {
	return Config{
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		TTL:          5 * time.Minute,
	}
}

// RedisCache is a Cache backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.Get.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheResult(key, false)
		return ErrCacheMiss
	}
	if err != nil {
		metrics.RecordError("cache", "get")
		return fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	metrics.RecordCacheResult(key, true)
	return nil
}

// Set implements Cache.Set.
func (c *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		metrics.RecordError("cache", "set")
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Delete implements Cache.Delete.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		metrics.RecordError("cache", "delete")
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *RedisCache) Close() error { return c.client.Close() }

// Noop is a Cache that never stores anything.
type Noop struct{}

// Get always misses.
func (Noop) Get(_ context.Context, key string, _ any) error {
	metrics.RecordCacheResult(key, false)
	return ErrCacheMiss
}

// Set discards the value.
func (Noop) Set(context.Context, string, any, time.Duration) error { return nil }

// Delete does nothing.
func (Noop) Delete(context.Context, ...string) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

// GetOrLoad returns the cached value at key, or calls load and caches its result.
// Cache failures never fail the call; load errors are returned as-is.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if err := c.Get(ctx, key, &v); err == nil {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = Noop{}
)

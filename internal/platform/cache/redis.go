package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"unit-preferences/internal/config"
)

const (
	preferencesKeyPrefix = "preferences:"
	purgeBatchSize       = 100
)

var (
	// ErrCacheMiss is returned by Get when the key is absent
	ErrCacheMiss = errors.New("key not found in cache")
	// ErrCacheDisabled is returned when constructing a client with caching turned off
	ErrCacheDisabled = errors.New("cache is disabled")
)

// RedisClient wraps the Redis client with application-specific functionality
// Note: This works with both Redis and Valkey (Redis-compatible)
type RedisClient struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisClient creates a new Redis client with the provided configuration
// Note: This works with both Redis and Valkey (Redis-compatible)
func NewRedisClient(cfg config.CacheConfig) (*RedisClient, error) {
	if !cfg.Enabled {
		return nil, ErrCacheDisabled
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              cfg.Database,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close() //nolint:errcheck // Connection cleanup in error path
		return nil, fmt.Errorf("failed to connect to Redis/Valkey: %w", err)
	}

	return &RedisClient{
		client:     rdb,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// PreferencesKey returns the cache key holding userID's preference set
func PreferencesKey(userID string) string {
	return preferencesKeyPrefix + userID
}

// Get retrieves a cached value by key and unmarshals it into result.
// Returns ErrCacheMiss when the key does not exist.
func (r *RedisClient) Get(ctx context.Context, key string, result interface{}) error {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(val, result); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return nil
}

// Set caches a value with the specified key and TTL; a zero TTL uses the configured default
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if ttl == 0 {
		ttl = r.defaultTTL
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache value: %w", err)
	}

	return nil
}

// Delete removes a value from cache by key
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}

	return nil
}

// Health checks if the Redis/Valkey connection is healthy
func (r *RedisClient) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis/valkey health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis/Valkey connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// PurgePreferences deletes every cached preference set and returns how many were removed.
// Keys are walked with SCAN so large keyspaces never block the server.
func (r *RedisClient) PurgePreferences(ctx context.Context) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, preferencesKeyPrefix+"*", purgeBatchSize).Iterator()

	batch := make([]string, 0, purgeBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("failed to purge cached preferences: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == purgeBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan cached preferences: %w", err)
	}

	return removed, flush()
}

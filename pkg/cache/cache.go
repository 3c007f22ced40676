// Package cache provides an optional Redis-backed cache for similarity
// search results. Every collection mutation bumps a version key, which
// shifts the whole key space instead of deleting cached entries one by
// one.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zereker/vecstore/pkg/log"
)

// Config Redis 缓存配置
type Config struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TTL      string `toml:"ttl"`
	Enabled  bool   `toml:"enabled"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("addr is required when cache is enabled")
	}
	if c.TTL != "" {
		if _, err := time.ParseDuration(c.TTL); err != nil {
			return fmt.Errorf("ttl is invalid: %w", err)
		}
	}
	return nil
}

const defaultTTL = 30 * time.Second

// SearchCache caches search results per collection. All methods are
// nil-receiver safe so callers can treat a disabled cache as absent.
type SearchCache struct {
	logger *slog.Logger
	client *redis.Client
	ttl    time.Duration
}

// New creates a SearchCache. Returns nil when the cache is disabled.
func New(cfg Config) (*SearchCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := defaultTTL
	if cfg.TTL != "" {
		ttl, _ = time.ParseDuration(cfg.TTL)
	}

	return &SearchCache{
		logger: log.Logger("cache"),
		client: client,
		ttl:    ttl,
	}, nil
}

func versionKey(collection string) string {
	return "vecstore:ver:" + collection
}

func (c *SearchCache) searchKey(ctx context.Context, collection, key string) string {
	version, err := c.client.Get(ctx, versionKey(collection)).Result()
	if err != nil {
		version = "0"
	}
	return fmt.Sprintf("vecstore:search:%s:%s:%s", collection, version, key)
}

// Get loads a cached value into out, reporting whether it was present.
func (c *SearchCache) Get(ctx context.Context, collection, key string, out any) bool {
	if c == nil {
		return false
	}

	data, err := c.client.Get(ctx, c.searchKey(ctx, collection, key)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("failed to decode cached value", "error", err)
		return false
	}
	return true
}

// Set stores a value under the collection's current version.
func (c *SearchCache) Set(ctx context.Context, collection, key string, value any) {
	if c == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.searchKey(ctx, collection, key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache value", "error", err)
	}
}

// Invalidate bumps the collection version, orphaning every cached entry
// for it. Orphans expire with their TTL.
func (c *SearchCache) Invalidate(ctx context.Context, collection string) {
	if c == nil {
		return
	}
	if err := c.client.Incr(ctx, versionKey(collection)).Err(); err != nil {
		c.logger.Warn("failed to invalidate cache", "collection", collection, "error", err)
	}
}

// Close closes the Redis connection.
func (c *SearchCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

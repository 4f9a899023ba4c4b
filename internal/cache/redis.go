// Package cache keeps per-country category maps in redis so that separate
// invocations do not refetch the same reference document.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ReferenceCache handles Redis-based caching of category maps
type ReferenceCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewReferenceCache creates a new Redis-based reference cache
func NewReferenceCache(config *Config, logger *zap.Logger) (*ReferenceCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	rc := newWithClient(redis.NewClient(opts), config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Reference cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Duration("default_ttl", config.DefaultTTL))

	return rc, nil
}

func newWithClient(client *redis.Client, config *Config, logger *zap.Logger) *ReferenceCache {
	return &ReferenceCache{client: client, config: config, logger: logger}
}

// Get returns the cached category map for a country. Errors are logged and
// reported as a miss.
func (rc *ReferenceCache) Get(ctx context.Context, country string) (map[string]string, bool) {
	key := rc.key(country)
	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		rc.misses.Add(1)
		rc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		rc.misses.Add(1)
		rc.logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var cached cachedReference
	if err := json.Unmarshal(data, &cached); err != nil {
		rc.misses.Add(1)
		rc.logger.Warn("Failed to unmarshal cached reference", zap.String("key", key), zap.Error(err))
		rc.client.Del(ctx, key)
		return nil, false
	}

	rc.hits.Add(1)
	rc.logger.Debug("Cache hit", zap.String("key", key), zap.Int("categories", len(cached.Categories)))
	return cached.Categories, true
}

// Set stores a category map with the default TTL.
func (rc *ReferenceCache) Set(ctx context.Context, country string, categories map[string]string) error {
	data, err := json.Marshal(cachedReference{
		Country:    country,
		Categories: categories,
		CachedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reference for caching: %w", err)
	}
	if err := rc.client.Set(ctx, rc.key(country), data, rc.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache reference: %w", err)
	}
	return nil
}

// GetStats returns cache performance statistics
func (rc *ReferenceCache) GetStats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{
		Hits:   rc.hits.Load(),
		Misses: rc.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := rc.client.DBSize(ctx).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to get Redis key count: %w", err)
	}
	stats.TotalKeys = keys
	return stats, nil
}

// Close closes the Redis connection
func (rc *ReferenceCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

func (rc *ReferenceCache) key(country string) string {
	return fmt.Sprintf("%s:category:%s", rc.config.KeyPrefix, strings.ToUpper(country))
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}

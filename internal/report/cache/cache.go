// Package cache provides the Redis-backed summary cache. Cache failures are
// swallowed: the aggregator rebuilds from the store, the cache only saves
// work when it is healthy.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"clearshift/internal/report"
)

const keyPrefix = "csw:summary:"

// RedisCache caches weekly summaries keyed by (domain, window).
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*report.Summary, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "summary cache read failed", "error", err)
		}
		return nil, false
	}
	var summary report.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.logger.WarnContext(ctx, "summary cache entry corrupt", "error", err)
		return nil, false
	}
	return &summary, true
}

func (c *RedisCache) Set(ctx context.Context, key string, summary *report.Summary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "summary cache write failed", "error", err)
	}
}

// Package cache keeps the most recent lifecycle reports in Redis so the
// report viewer can serve them without bucket access.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/s3-permanent-deletes/internal/config"
)

const (
	reportKeyPrefix = "lifecycle:report:"
	latestKey       = reportKeyPrefix + "latest"
)

// ReportCache stores encoded reports by bucket, plus the latest one overall.
type ReportCache interface {
	StoreReport(ctx context.Context, bucket string, payload []byte) error
	LatestReport(ctx context.Context) ([]byte, bool, error)
	BucketReport(ctx context.Context, bucket string) ([]byte, bool, error)
	Close() error
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopReportCache struct{}

// NewReportCache returns a Redis-backed cache when caching is enabled and a
// no-op cache otherwise.
func NewReportCache(ctx context.Context, cfg config.CacheConfig) (ReportCache, error) {
	if !cfg.Enabled {
		return NewNoopReportCache(), nil
	}

	client, ttl, err := newRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisReportCache(client, ttl), nil
}

func NewRedisReportCache(client *redis.Client, ttl time.Duration) ReportCache {
	if ttl <= 0 {
		ttl = defaultReportTTL
	}
	return &redisReportCache{client: client, ttl: ttl}
}

func NewNoopReportCache() ReportCache {
	return &noopReportCache{}
}

func bucketKey(bucket string) string {
	return reportKeyPrefix + "bucket:" + bucket
}

func (c *redisReportCache) StoreReport(ctx context.Context, bucket string, payload []byte) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, bucketKey(bucket), payload, c.ttl)
	pipe.Set(ctx, latestKey, payload, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisReportCache) LatestReport(ctx context.Context) ([]byte, bool, error) {
	return c.get(ctx, latestKey)
}

func (c *redisReportCache) BucketReport(ctx context.Context, bucket string) ([]byte, bool, error) {
	return c.get(ctx, bucketKey(bucket))
}

func (c *redisReportCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return payload, true, nil
}

func (c *redisReportCache) Close() error {
	return c.client.Close()
}

func (c *noopReportCache) StoreReport(context.Context, string, []byte) error {
	return nil
}

func (c *noopReportCache) LatestReport(context.Context) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *noopReportCache) BucketReport(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *noopReportCache) Close() error {
	return nil
}

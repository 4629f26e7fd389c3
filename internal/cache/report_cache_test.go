package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/s3-permanent-deletes/internal/config"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, ReportCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisReportCache(client, time.Hour)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisReportCache_RoundTrip(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.LatestReport(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.StoreReport(ctx, "svodvideos", []byte(`{"bucket_name":"svodvideos"}`)))
	require.NoError(t, c.StoreReport(ctx, "archive", []byte(`{"bucket_name":"archive"}`)))

	latest, ok, err := c.LatestReport(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"bucket_name":"archive"}`, string(latest))

	byBucket, ok, err := c.BucketReport(ctx, "svodvideos")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"bucket_name":"svodvideos"}`, string(byBucket))

	assert.Equal(t, time.Hour, mr.TTL(latestKey))
}

func TestRedisReportCache_Expiry(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.StoreReport(ctx, "svodvideos", []byte(`{}`)))
	mr.FastForward(2 * time.Hour)

	_, ok, err := c.BucketReport(ctx, "svodvideos")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewReportCache(t *testing.T) {
	ctx := context.Background()

	c, err := NewReportCache(ctx, config.CacheConfig{})
	require.NoError(t, err)
	require.NoError(t, c.StoreReport(ctx, "b", []byte("x")))
	_, ok, err := c.LatestReport(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	mr := miniredis.RunT(t)
	c, err = NewReportCache(ctx, config.CacheConfig{Enabled: true, RedisURL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.StoreReport(ctx, "b", []byte("x")))
	assert.True(t, mr.Exists(latestKey))

	_, err = NewReportCache(ctx, config.CacheConfig{Enabled: true, RedisURL: "://bad"})
	assert.Error(t, err)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisPassword: "secret", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
}

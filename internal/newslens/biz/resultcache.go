package biz

import (
	"context"
	stderrors "errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/newslens/pkg/cache"
	"github.com/kart-io/newslens/pkg/utils/json"
)

// ResultCache holds short-lived generated results as JSON.
type ResultCache interface {
	// Get decodes the cached value into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisResultCache shares results between processes.
type RedisResultCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewRedisResultCache creates a redis backed ResultCache.
func NewRedisResultCache(client goredis.UniversalClient, prefix string) *RedisResultCache {
	return &RedisResultCache{client: client, prefix: prefix}
}

func (c *RedisResultCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisResultCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

func (c *RedisResultCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// MemoryResultCache is the single-process fallback when redis is not
// configured.
type MemoryResultCache struct {
	entries *cache.TTLCache[string, []byte]
}

// NewMemoryResultCache creates an in-process ResultCache.
func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{entries: cache.NewTTLCache[string, []byte](0)}
}

// WithClock replaces the time source, used by tests.
func (c *MemoryResultCache) WithClock(now func() time.Time) *MemoryResultCache {
	c.entries.WithClock(now)
	return c
}

func (c *MemoryResultCache) Get(_ context.Context, key string, dst any) (bool, error) {
	data, ok := c.entries.Get(key)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c *MemoryResultCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries.Purge()
	c.entries.SetWithTTL(key, data, ttl)
	return nil
}

func (c *MemoryResultCache) Delete(_ context.Context, key string) error {
	c.entries.Del(key)
	return nil
}

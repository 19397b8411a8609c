package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefCache stores serialized reference-data payloads keyed by scope.
type RefCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRefCache(client *redis.Client, ttl time.Duration) *RefCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RefCache{client: client, ttl: ttl}
}

func (c *RefCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil || key == "" {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.prefixed(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *RefCache) Set(ctx context.Context, key string, value []byte) {
	if c == nil || c.client == nil || key == "" || len(value) == 0 {
		return
	}
	c.client.Set(ctx, c.prefixed(key), value, c.ttl)
}

func (c *RefCache) Invalidate(ctx context.Context, key string) {
	if c == nil || c.client == nil || key == "" {
		return
	}
	c.client.Del(ctx, c.prefixed(key))
}

func (c *RefCache) prefixed(key string) string {
	return "refdata:" + key
}

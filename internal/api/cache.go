package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"entree-api/internal/logger"
)

// Cache is a read-through cache over item lookups. It is best-effort: a nil
// cache, a nil client or an unreachable redis all degrade to plain reads.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
	Log    *logger.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{Client: client, TTL: ttl, Log: log}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.Client == nil {
		return nil, false
	}
	body, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		if c.Log != nil {
			c.Log.Warn("CACHE", fmt.Sprintf("get %s: %v", key, err))
		}
		return nil, false
	}
	return body, true
}

func (c *Cache) Set(ctx context.Context, key string, body []byte) {
	if c == nil || c.Client == nil {
		return
	}
	if err := c.Client.Set(ctx, key, body, c.TTL).Err(); err != nil && c.Log != nil {
		c.Log.Warn("CACHE", fmt.Sprintf("set %s: %v", key, err))
	}
}

// Invalidate implements ingest.Invalidator so freshly synced entities are
// not served stale.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.Client == nil || len(keys) == 0 {
		return
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil && c.Log != nil {
		c.Log.Warn("CACHE", fmt.Sprintf("invalidate %v: %v", keys, err))
	}
}

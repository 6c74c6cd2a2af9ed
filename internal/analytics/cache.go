package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKey = "analytics:ver"

// Cache stores computed read models in Redis under versioned keys. Writers
// invalidate by bumping the version; stale entries simply expire.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get unmarshals the cached value for key into target. The second return is
// false on a miss; Redis errors are returned as misses so reads degrade to
// the database rather than fail.
func (c *Cache) Get(ctx context.Context, key string, target any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	full, err := c.versionedKey(ctx, key)
	if err != nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, full).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

// Set stores the value for key under the current version.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	if c == nil || c.rdb == nil {
		return
	}
	full, err := c.versionedKey(ctx, key)
	if err != nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, full, raw, c.ttl)
}

// Invalidate bumps the version so every cached entry becomes unreachable.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Incr(ctx, versionKey).Err()
}

func (c *Cache) versionedKey(ctx context.Context, key string) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("analytics:v%d:%s", ver, key), nil
}

package rediscache

import (
	"context"
	"time"

	"github.com/kbukum/scribe/enhance"
	"github.com/kbukum/scribe/redis"
)

// KeyPrefix namespaces enhancement keys.
const KeyPrefix = "scribe:enhance"

// Cache stores enhancements in Redis as JSON.
type Cache struct {
	store *redis.TypedStore[enhance.Enhancement]
}

var _ enhance.Cache = (*Cache)(nil)

// New creates a Cache on client.
func New(client *redis.Client) *Cache {
	return &Cache{store: redis.NewTypedStore[enhance.Enhancement](client, KeyPrefix)}
}

// Get implements enhance.Cache.
func (c *Cache) Get(ctx context.Context, key string) (*enhance.Enhancement, error) {
	return c.store.Load(ctx, key)
}

// Put implements enhance.Cache.
func (c *Cache) Put(ctx context.Context, key string, e enhance.Enhancement, ttl time.Duration) error {
	return c.store.Save(ctx, key, &e, ttl)
}

package enhance

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	e       Enhancement
	expires time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Enhancement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !ent.expires.IsZero() && c.now().After(ent.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	e := ent.e
	return &e, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, key string, e Enhancement, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent := memoryEntry{e: e}
	if ttl > 0 {
		ent.expires = c.now().Add(ttl)
	}
	c.entries[key] = ent
	return nil
}

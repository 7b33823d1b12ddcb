package idempotency

import (
	"context"
	"sync"
	"time"
)

type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{now: now, entries: make(map[string]time.Time)}
}

func (c *MemoryCache) Add(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiresAt, ok := c.entries[key]; ok && now.Before(expiresAt) {
		return true, nil
	}
	c.entries[key] = now.Add(ttl)
	return false, nil
}

func (c *MemoryCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// CleanExpired drops expired entries and returns how many were removed.
func (c *MemoryCache) CleanExpired(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var removed int64
	for key, expiresAt := range c.entries {
		if !now.Before(expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

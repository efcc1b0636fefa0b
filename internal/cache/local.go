package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCache implements Cache in process memory.
// This is suitable for single-instance deployments.
type LocalCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*ModelListEntry
	now     func() time.Time
}

// NewLocalCache creates an in-memory cache whose entries expire after ttl.
// A non-positive ttl uses DefaultTTL.
func NewLocalCache(ttl time.Duration) *LocalCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LocalCache{
		ttl:     ttl,
		entries: make(map[string]*ModelListEntry),
		now:     time.Now,
	}
}

// Get retrieves a live entry.
func (c *LocalCache) Get(_ context.Context, key string) (*ModelListEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if c.now().Sub(entry.CachedAt) >= c.ttl {
		c.mu.Lock()
		// Another writer may have refreshed the key in between.
		if current, ok := c.entries[key]; ok && current == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, nil
	}

	models := make([]string, len(entry.Models))
	copy(models, entry.Models)
	return &ModelListEntry{Models: models, CachedAt: entry.CachedAt}, nil
}

// Set stores a copy of entry. A zero CachedAt is set to the current time.
func (c *LocalCache) Set(_ context.Context, key string, entry *ModelListEntry) error {
	stored := &ModelListEntry{
		Models:   append([]string(nil), entry.Models...),
		CachedAt: entry.CachedAt,
	}
	if stored.CachedAt.IsZero() {
		stored.CachedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = stored
	return nil
}

// Close drops every entry.
func (c *LocalCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*ModelListEntry)
	return nil
}

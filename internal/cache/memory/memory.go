// Package memory is the process-local cache backend.
package memory

import (
	"context"
	"sync"

	"github.com/tinoosan/txledger/internal/cache"
)

// Cache is a thread-safe map of entries plus an invalidation generation.
// There is no expiry: entries live until the next InvalidateAll.
type Cache struct {
	mu      sync.RWMutex
	gen     cache.Ticket
	entries map[cache.Key]cache.Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[cache.Key]cache.Entry)}
}

// Ticket returns the current generation.
func (c *Cache) Ticket(_ context.Context) (cache.Ticket, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen, nil
}

// Lookup returns a copy of the cached entry for key.
func (c *Cache) Lookup(_ context.Context, key cache.Key) (cache.Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return cache.Entry{}, false, nil
	}
	return e.Clone(), true, nil
}

// Store keeps a copy of e unless the cache was invalidated since t was issued.
func (c *Cache) Store(_ context.Context, t cache.Ticket, key cache.Key, e cache.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t != c.gen {
		return nil
	}
	c.entries[key] = e.Clone()
	return nil
}

// InvalidateAll clears every entry and advances the generation.
func (c *Cache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[cache.Key]cache.Entry)
	return nil
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

package cache

import (
	"strings"
	"sync"
	"time"
)

// Entry represents a cached value with expiration
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Cache is a simple in-memory cache with TTL
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]*Entry[V]
	now   func() time.Time
}

// New creates a new cache
func New[V any]() *Cache[V] {
	return &Cache[V]{items: map[string]*Entry[V]{}, now: time.Now}
}

// Set stores a value in the cache with a given TTL
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &Entry[V]{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

// Get retrieves a value from the cache if it hasn't expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero V
	entry, exists := c.items[key]
	if !exists {
		return zero, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		return zero, false
	}
	return entry.Value, true
}

// Delete removes a key from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Invalidate removes all items matching a prefix
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.items {
		if !now.Before(entry.ExpiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

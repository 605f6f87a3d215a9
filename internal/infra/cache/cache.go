// Package cache provides a small in-memory TTL cache. The assistant uses it
// for the market-context block attached to chat prompts and the marketdata
// handler uses it for parsed CSV rows, so a burst of panel questions does
// not re-read the dataset for every prompt.
package cache

import (
	"sync"
	"time"
)

type item[T any] struct {
	value   T
	expires time.Time
}

// InMemory caches values of one type under string keys with a single TTL.
// Safe for concurrent use.
type InMemory[T any] struct {
	mu  sync.RWMutex
	set map[string]item[T]
	ttl time.Duration
}

// New creates a cache whose entries live for ttl. Expired entries are
// invisible to Get immediately; a background sweep reclaims their memory.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		set: make(map[string]item[T]),
		ttl: ttl,
	}
	go c.sweep()
	return c
}

// Get returns the cached value for key, or false when absent or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.set[key]
	if !ok || time.Now().After(it.expires) {
		var zero T
		return zero, false
	}
	return it.value, true
}

// Set stores value under key for the cache's TTL, replacing any previous
// entry.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set[key] = item[T]{
		value:   value,
		expires: time.Now().Add(c.ttl),
	}
}

// Delete drops key. Used when the CSV watcher sees the dataset change
// before the TTL lapses.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.set, key)
}

// sweep drops expired entries once per TTL period. Correctness does not
// depend on it; Get already treats expired entries as misses.
func (c *InMemory[T]) sweep() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, it := range c.set {
			if now.After(it.expires) {
				delete(c.set, k)
			}
		}
		c.mu.Unlock()
	}
}

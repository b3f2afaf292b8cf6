// Package cache provides a process-wide in-memory cache where entries are
// evicted by age only, never by size. Freshness is decided per read: the
// same stored entry can satisfy callers with different tolerances.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// TTL is a concurrency-safe key/value cache. Expiry is evaluated lazily on
// read against the caller-supplied maxAge; there is no background sweep.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     func() time.Time
}

// NewTTL creates an empty cache.
func NewTTL[V any]() *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get returns the value for key if it was inserted no more than maxAge ago.
// An entry aged exactly maxAge is still a hit. Stale entries are dropped.
func (c *TTL[V]) Get(key string, maxAge time.Duration) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if now.Sub(e.insertedAt) <= maxAge {
		return e.value, true
	}

	// Lazy expiry. Only drop the entry if it was not overwritten since
	// the read above.
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && cur.insertedAt.Equal(e.insertedAt) {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	return zero, false
}

// Set stores value under key, unconditionally overwriting any previous
// entry and resetting its insertion time.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, insertedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes every entry whose key starts with prefix and returns
// the number of entries removed.
func (c *TTL[V]) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including any not yet lazily
// expired.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

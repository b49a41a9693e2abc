// Package cache provides a thread-safe cache with per-entry time-based
// expiration.
package cache

import (
	"sync"
	"time"
)

// TTLCache stores key-value pairs that expire individually after the
// configured TTL. Expired entries are dropped lazily on access.
type TTLCache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]item[V]
	ttl  time.Duration
}

type item[V any] struct {
	value    V
	deadline time.Time
}

// New creates a TTLCache whose entries live for ttl after being set.
func New[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data: make(map[K]item[V]),
		ttl:  ttl,
	}
}

// Get retrieves a live value. It reports false when the key is absent
// or its entry has expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	it, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(it.deadline) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores a value, starting its TTL timer now.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = item[V]{value: value, deadline: time.Now().Add(c.ttl)}
}

// Len returns the number of stored entries, counting any not yet
// evicted expired ones.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear drops every entry.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]item[V])
}

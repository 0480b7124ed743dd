package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTTL is the validity window applied when a TTLCache is built without one.
const DefaultTTL = 5 * time.Minute

type ttlEntry[T any] struct {
	data      T
	timestamp time.Time
}

// TTLCache is an in-process map whose entries are valid for a fixed duration after
// they were written. Stale entries stay in place until overwritten or cleared.
// Concurrent misses on the same key are not coalesced.
type TTLCache[T any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]ttlEntry[T]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// TTLOption customises a TTLCache.
type TTLOption func(*ttlConfig)

type ttlConfig struct {
	now func() time.Time
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) TTLOption {
	return func(cfg *ttlConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// NewTTLCache constructs a cache whose entries expire ttl after being set.
func NewTTLCache[T any](ttl time.Duration, opts ...TTLOption) *TTLCache[T] {
	cfg := ttlConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache[T]{
		ttl:     ttl,
		now:     cfg.now,
		entries: make(map[string]ttlEntry[T]),
	}
}

// Get returns the cached value when it was stored less than TTL ago.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	var zero T

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.timestamp) >= c.ttl {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return entry.data, true
}

// Set stores data under key stamped with the current time, replacing any prior entry.
func (c *TTLCache[T]) Set(key string, data T) {
	c.mu.Lock()
	c.entries[key] = ttlEntry[T]{data: data, timestamp: c.now()}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len reports the number of stored entries, stale ones included.
func (c *TTLCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the configured validity window.
func (c *TTLCache[T]) TTL() time.Duration {
	return c.ttl
}

// Stats returns the cumulative hit and miss counts.
func (c *TTLCache[T]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTTLCacheHitWithinWindow(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache[string](5*time.Minute, WithClock(clock.Now))

	c.Set("operators", "v1")
	clock.Advance(4*time.Minute + 59*time.Second)

	got, ok := c.Get("operators")
	require.True(t, ok)
	require.Equal(t, "v1", got)
}

func TestTTLCacheExpiresAtBoundary(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache[int](time.Minute, WithClock(clock.Now))

	c.Set("k", 42)
	clock.Advance(time.Minute)

	got, ok := c.Get("k")
	require.False(t, ok)
	require.Zero(t, got)
	require.Equal(t, 1, c.Len(), "stale entries are not evicted")
}

func TestTTLCacheSetOverwritesAndRefreshesTimestamp(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache[string](time.Minute, WithClock(clock.Now))

	c.Set("k", "old")
	clock.Advance(50 * time.Second)
	c.Set("k", "new")
	clock.Advance(50 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "new", got)
}

func TestTTLCacheClear(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Clear()

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestTTLCacheDefaultsAndStats(t *testing.T) {
	c := NewTTLCache[string](0)
	require.Equal(t, DefaultTTL, c.TTL())

	c.Set("a", "1")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	hits, misses := c.Stats()
	require.Equal(t, uint64(1), hits)
	require.Equal(t, uint64(1), misses)
}

func TestTTLCacheConcurrentAccess(t *testing.T) {
	c := NewTTLCache[int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("shared", i)
				_, _ = c.Get("shared")
			}
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("shared")
	require.True(t, ok)
}

package ttlcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func TestCache_SetGet(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("a", "hello")

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "hello", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_LazyExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(time.Minute, WithClock[int](clock.Now))

	c.Set("k", 42)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, got)

	// Past the deadline the entry is absent, with no eviction call needed.
	clock.Advance(time.Minute + time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)

	// The expired entry was removed on that read.
	assert.Equal(t, 0, c.Len())
}

func TestCache_SetRefreshesDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(time.Minute, WithClock[string](clock.Now))

	c.Set("k", "v1")
	clock.Advance(45 * time.Second)
	c.Set("k", "v2")
	clock.Advance(45 * time.Second)

	// 90s after the first set but only 45s after the refresh.
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", got)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set("shared", i)
			c.Get("shared")
		}()
	}
	wg.Wait()

	_, ok := c.Get("shared")
	assert.True(t, ok)
}

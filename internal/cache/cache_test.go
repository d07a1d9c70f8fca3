// SPDX-License-Identifier: MIT

package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type asset struct {
	ID       int64   `json:"id"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("key1", "value1", 5*time.Minute)

	val, ok := c.Get("key1")
	require.True(t, ok, "expected to find key1")
	assert.Equal(t, "value1", val)

	_, ok = c.Get("nonexistent")
	assert.False(t, ok, "expected not to find nonexistent key")
}

func TestMemoryCache_Expiration(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newMemoryCache(0, func() time.Time { return now })

	c.Set("shortlived", "value", 2*time.Second)
	_, ok := c.Get("shortlived")
	require.True(t, ok)

	now = now.Add(3 * time.Second)
	_, ok = c.Get("shortlived")
	assert.False(t, ok, "expected key to be expired")

	assert.Equal(t, 1, c.deleteExpired())
	st := c.Stats()
	assert.Equal(t, int64(1), st.Evictions)
	assert.Zero(t, st.CurrentSize)
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Zero(t, c.Stats().CurrentSize)
}

func TestMemoryCache_Stats(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("k", "v", time.Minute)
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	st := c.Stats()
	assert.Equal(t, int64(1), st.Sets)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 1, st.CurrentSize)
}

func TestMemoryCache_ConcurrentReaders(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("k", "v", time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get("k")
				c.Get("absent")
			}
		}()
	}
	wg.Wait()

	st := c.Stats()
	assert.Equal(t, int64(1600), st.Hits)
	assert.Equal(t, int64(1600), st.Misses)
}

func TestMemoryCache_CloseStopsJanitor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewMemoryCache(time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
}

func TestTyped(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("asset", asset{ID: 7, Path: "media/A.mp4", Duration: 12.5}, time.Minute)

	got, ok := Typed[asset](c, "asset")
	require.True(t, ok)
	assert.Equal(t, int64(7), got.ID)

	c.Set("generic", map[string]any{"id": 9, "path": "B", "duration": 3}, time.Minute)
	got, ok = Typed[asset](c, "generic")
	require.True(t, ok, "generic JSON values are re-decoded")
	assert.Equal(t, asset{ID: 9, Path: "B", Duration: 3}, got)

	c.Set("wrong", "not an asset", time.Minute)
	_, ok = Typed[asset](c, "wrong")
	assert.False(t, ok)

	_, ok = Typed[asset](c, "missing")
	assert.False(t, ok)
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("k", "v", time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, CacheStats{}, c.Stats())
	assert.NoError(t, c.Close())
}

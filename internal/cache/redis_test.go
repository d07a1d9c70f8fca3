// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := newRedisCache(client, "", zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), KeyPrefix: "t:"}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	c.Set("k", "v", time.Minute)
	assert.True(t, mr.Exists("t:k"))

	mr.Close()
	_, err = NewRedisCache(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.Error(t, err)
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("test-key", "test-value", 5*time.Minute)
	assert.True(t, mr.Exists(defaultKeyPrefix+"test-key"))

	val, found := c.Get("test-key")
	require.True(t, found)
	assert.Equal(t, "test-value", val)

	_, found = c.Get("nonexistent")
	assert.False(t, found)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Sets)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 1, st.CurrentSize)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("ttl-key", "value", 2*time.Second)
	_, found := c.Get("ttl-key")
	require.True(t, found)

	mr.FastForward(3 * time.Second)
	_, found = c.Get("ttl-key")
	assert.False(t, found, "expected key to be expired")
}

func TestRedisCache_DeleteAndClearKeepForeignKeys(t *testing.T) {
	mr, c := setupMiniRedis(t)
	require.NoError(t, mr.Set("foreign", "keep"))

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Delete("a")
	_, found := c.Get("a")
	assert.False(t, found)

	c.Clear()
	_, found = c.Get("b")
	assert.False(t, found)
	assert.True(t, mr.Exists("foreign"), "clear only removes prefixed keys")
}

func TestRedisCache_TypedRoundTrip(t *testing.T) {
	_, c := setupMiniRedis(t)

	c.Set("asset:7", asset{ID: 7, Path: "media/A.mp4", Duration: 12.5}, time.Minute)
	got, ok := Typed[asset](c, "asset:7")
	require.True(t, ok)
	assert.Equal(t, asset{ID: 7, Path: "media/A.mp4", Duration: 12.5}, got)
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, c := setupMiniRedis(t)
	require.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestRedisCache_ConcurrentAccess(t *testing.T) {
	_, c := setupMiniRedis(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c.Set("shared", j, time.Minute)
				c.Get("shared")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(160), c.Stats().Sets)
}

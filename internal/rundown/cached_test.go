// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rundown

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/nebula/internal/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts asset and status reads reaching the backing store.
type countingStore struct {
	*MemoryStore
	assetReads  int
	statusReads int
}

func (c *countingStore) GetAsset(ctx context.Context, id int64) (Asset, error) {
	c.assetReads++
	return c.MemoryStore.GetAsset(ctx, id)
}

func (c *countingStore) PlayoutStatus(ctx context.Context, id int64, ch int) (PlayoutStatus, error) {
	c.statusReads++
	return c.MemoryStore.PlayoutStatus(ctx, id, ch)
}

func cachedContract(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	backing := &countingStore{MemoryStore: NewMemoryStore()}
	populate(t, backing.MemoryStore)
	s := NewCachedStore(backing, c, time.Minute, time.Minute)

	for i := 0; i < 3; i++ {
		a, err := s.GetAsset(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "media/A.mp4", a.Path)
		assert.InDelta(t, 10, a.Duration, 0.001)
		st, err := s.PlayoutStatus(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, StatusOffline, st)
	}
	assert.Equal(t, 1, backing.assetReads)
	assert.Equal(t, 1, backing.statusReads)

	_, err := s.GetAsset(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetAsset(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 3, backing.assetReads, "misses are not cached")

	require.NoError(t, backing.SetPlayoutStatus(ctx, 2, 1, StatusOnline))
	s.Invalidate(2, 1)
	st, err := s.PlayoutStatus(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusOnline, st)

	b, err := s.GetBin(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, b.Items, 3, "bins pass through")
}

func TestCachedStore_Memory(t *testing.T) {
	cachedContract(t, cache.NewMemoryCache(0))
}

func TestCachedStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(cache.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	cachedContract(t, c)
}

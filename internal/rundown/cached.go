// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rundown

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/nebula/internal/cache"
)

const (
	DefaultAssetTTL  = 30 * time.Second
	DefaultStatusTTL = 2 * time.Second
)

// CachedStore is a read-through cache over assets and playout status. Bins,
// events and the as-run log always go to the underlying store since the
// rundown editor changes them while the channel is running.
type CachedStore struct {
	Store
	cache     cache.Cache
	assetTTL  time.Duration
	statusTTL time.Duration
}

// NewCachedStore wraps s. Zero TTLs take the defaults.
func NewCachedStore(s Store, c cache.Cache, assetTTL, statusTTL time.Duration) *CachedStore {
	if assetTTL <= 0 {
		assetTTL = DefaultAssetTTL
	}
	if statusTTL <= 0 {
		statusTTL = DefaultStatusTTL
	}
	return &CachedStore{Store: s, cache: c, assetTTL: assetTTL, statusTTL: statusTTL}
}

func assetKey(id int64) string { return fmt.Sprintf("asset:%d", id) }

func statusCacheKey(asset int64, channel int) string {
	return fmt.Sprintf("status:%d:%d", channel, asset)
}

func (s *CachedStore) GetAsset(ctx context.Context, id int64) (Asset, error) {
	key := assetKey(id)
	if a, ok := cache.Typed[Asset](s.cache, key); ok {
		return a, nil
	}
	a, err := s.Store.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	s.cache.Set(key, a, s.assetTTL)
	return a, nil
}

func (s *CachedStore) PlayoutStatus(ctx context.Context, assetID int64, channel int) (PlayoutStatus, error) {
	key := statusCacheKey(assetID, channel)
	if st, ok := cache.Typed[PlayoutStatus](s.cache, key); ok {
		return st, nil
	}
	st, err := s.Store.PlayoutStatus(ctx, assetID, channel)
	if err != nil {
		return st, err
	}
	s.cache.Set(key, st, s.statusTTL)
	return st, nil
}

// Invalidate drops cached entries for an asset on every channel view it
// was read through.
func (s *CachedStore) Invalidate(assetID int64, channels ...int) {
	s.cache.Delete(assetKey(assetID))
	for _, ch := range channels {
		s.cache.Delete(statusCacheKey(assetID, ch))
	}
}

// Close closes the underlying store and the cache.
func (s *CachedStore) Close() error {
	err := s.Store.Close()
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

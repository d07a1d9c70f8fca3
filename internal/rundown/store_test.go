// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rundown

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/nebula/internal/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func populate(t *testing.T, s ReadWriter) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.PutAsset(ctx, Asset{ID: 1, Path: "media/A.mp4", Duration: 10, Meta: map[string]any{"genre": "news"}}))
	require.NoError(t, s.PutAsset(ctx, Asset{ID: 2, Path: "media/B.mov", Duration: 20}))
	require.NoError(t, s.PutBin(ctx, Bin{ID: 10, Title: "morning", Items: []Item{
		{ID: 103, AssetID: 2, Position: 1},
		{ID: 101, AssetID: 1, Position: 0},
		{ID: 102, Role: RoleLive, Position: 1, RunMode: RunManual},
	}}))
	require.NoError(t, s.PutBin(ctx, Bin{ID: 20, Items: []Item{{ID: 201, AssetID: 1}}}))
	require.NoError(t, s.PutEvent(ctx, Event{ID: 1, ChannelID: 1, Start: t0, BinID: 10}))
	require.NoError(t, s.PutEvent(ctx, Event{ID: 2, ChannelID: 1, Start: t0.Add(time.Hour), BinID: 20, RunMode: RunHard}))
	require.NoError(t, s.PutEvent(ctx, Event{ID: 3, ChannelID: 2, Start: t0.Add(30 * time.Minute), BinID: 20}))
	require.NoError(t, s.SetPlayoutStatus(ctx, 2, 1, StatusOffline))
}

func storeContract(t *testing.T, s ReadWriter) {
	ctx := context.Background()
	populate(t, s)

	t.Run("bin ordering", func(t *testing.T) {
		b, err := s.GetBin(ctx, 10)
		require.NoError(t, err)
		var ids []int64
		for _, it := range b.Items {
			ids = append(ids, it.ID)
		}
		assert.Equal(t, []int64{101, 102, 103}, ids, "position then id")
		assert.Equal(t, "morning", b.Title)
		assert.Equal(t, RoleLive, b.Items[1].Role)
		assert.Equal(t, RunManual, b.Items[1].RunMode)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetBin(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetItem(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetAsset(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetEvent(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.PlayoutStatus(ctx, 99, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("asset meta", func(t *testing.T) {
		a, err := s.GetAsset(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "news", a.Meta["genre"])
		assert.Equal(t, "media/A", a.ClipName())
	})

	t.Run("event navigation", func(t *testing.T) {
		e, err := s.EventForBin(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), e.ID)

		next, err := s.NextEvent(ctx, 1, t0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), next.ID)
		assert.Equal(t, RunHard, next.RunMode)
		assert.True(t, next.Start.Equal(t0.Add(time.Hour)))

		_, err = s.NextEvent(ctx, 1, t0.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNotFound)

		prev, err := s.PrevEvent(ctx, 1, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), prev.ID)

		at, err := s.EventAt(ctx, 1, t0.Add(90*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), at.ID)
		_, err = s.EventAt(ctx, 1, t0.Add(-time.Second))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("playout status", func(t *testing.T) {
		st, err := s.PlayoutStatus(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, StatusOffline, st)
		st, err = s.PlayoutStatus(ctx, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, StatusOnline, st, "no row means online")
	})

	t.Run("as-run", func(t *testing.T) {
		_, err := s.LastAsRun(ctx, 1)
		require.ErrorIs(t, err, ErrNotFound)

		first, err := s.AppendAsRun(ctx, 1, 101, t0)
		require.NoError(t, err)
		require.NoError(t, s.CloseAsRun(ctx, first, t0.Add(10*time.Second)))
		second, err := s.AppendAsRun(ctx, 1, 103, t0.Add(10*time.Second))
		require.NoError(t, err)
		_, err = s.AppendAsRun(ctx, 2, 201, t0)
		require.NoError(t, err)

		last, err := s.LastAsRun(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, second, last.ID)
		assert.Equal(t, int64(103), last.ItemID)
		assert.True(t, last.Open())

		require.NoError(t, s.CloseAsRun(ctx, first, t0.Add(time.Hour)))
		recent, err := s.RecentAsRun(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		require.NotNil(t, recent[1].Stop)
		assert.True(t, recent[1].Stop.Equal(t0.Add(10*time.Second)), "stop is set once")

		assert.ErrorIs(t, s.CloseAsRun(ctx, 9999, t0), ErrNotFound)
	})

	t.Run("put bin replaces items", func(t *testing.T) {
		require.NoError(t, s.PutBin(ctx, Bin{ID: 20, Items: []Item{{ID: 202, AssetID: 2}}}))
		b, err := s.GetBin(ctx, 20)
		require.NoError(t, err)
		require.Len(t, b.Items, 1)
		assert.Equal(t, int64(202), b.Items[0].ID)
		_, err = s.GetItem(ctx, 201)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSqliteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rundown.sqlite")
	s, err := NewSqliteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	storeContract(t, s)

	v, err := sqlite.SchemaVersion(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestSqliteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rundown.sqlite")
	s, err := NewSqliteStore(path)
	require.NoError(t, err)
	populate(t, s)
	id, err := s.AppendAsRun(context.Background(), 1, 101, t0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSqliteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	last, err := s.LastAsRun(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, id, last.ID)
	assert.True(t, last.Start.Equal(t0))
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s, "sqlite without a directory falls back to memory")

	dir := t.TempDir()
	s, err = NewStore("sqlite", dir)
	require.NoError(t, err)
	assert.IsType(t, &SqliteStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "rundown.sqlite"))

	_, err = NewStore("postgres", dir)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Ping(ctx, NewMemoryStore()))

	s, err := NewSqliteStore(filepath.Join(t.TempDir(), "rundown.sqlite"))
	require.NoError(t, err)
	require.NoError(t, Ping(ctx, s))
	require.NoError(t, s.Close())
	assert.Error(t, Ping(ctx, s), "closed database")
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rundown

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
assets:
  - id: 1
    path: media/intro.mxf
    duration: 10
  - id: 2
    path: media/news.mxf
    duration: 600
    status: {1: offline}
bins:
  - id: 100
    title: block
    items:
      - {id: 1001, role: lead_in, duration: 5}
      - {id: 1002, asset: 1, runMode: manual}
      - {id: 1003, asset: 2, markIn: 3, markOut: 63, loop: true}
      - {id: 1004, role: lead_out}
events:
  - {id: 1, channel: 1, start: "-1h", runMode: soft, bin: 100, title: Morning}
  - {id: 2, channel: 1, start: "2026-03-01T08:00:00Z", bin: 100}
asrun:
  - {channel: 1, item: 1002, start: "-30m", stop: "-20m"}
  - {channel: 1, item: 1003, start: "-20m"}
`

func TestSeedBytes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	require.NoError(t, SeedBytes(ctx, s, []byte(fixture), now))

	b, err := s.GetBin(ctx, 100)
	require.NoError(t, err)
	require.Len(t, b.Items, 4)
	assert.Equal(t, RoleLeadIn, b.Items[0].Role)
	assert.Equal(t, RunManual, b.Items[1].RunMode)
	assert.True(t, b.Items[2].Loop)
	assert.InDelta(t, 63, b.Items[2].MarkOut, 0.001)
	assert.Equal(t, 3, b.Items[3].Position)

	e, err := s.GetEvent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, RunSoft, e.RunMode)
	assert.True(t, e.Start.Equal(now.Add(-time.Hour)))

	st, err := s.PlayoutStatus(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, st)

	last, err := s.LastAsRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1003), last.ItemID)
	assert.True(t, last.Open())
}

func TestSeed_FileIntoSqlite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rundown.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	s, err := NewSqliteStore(filepath.Join(dir, "rundown.sqlite"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, Seed(context.Background(), s, path, time.Now()))

	recent, err := s.RecentAsRun(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSeed_Rejects(t *testing.T) {
	ctx := context.Background()
	tests := map[string]string{
		"unknown field": "assets:\n  - id: 1\n    colour: red\n",
		"bad role":      "bins:\n  - id: 1\n    items:\n      - {id: 1, role: commercial}\n",
		"bad run mode":  "events:\n  - {id: 1, channel: 1, bin: 1, runMode: maybe}\n",
		"bad time":      "events:\n  - {id: 1, channel: 1, bin: 1, start: tomorrow}\n",
		"bad status":    "assets:\n  - {id: 1, path: a, status: {1: lost}}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, SeedBytes(ctx, NewMemoryStore(), []byte(doc), time.Now()))
		})
	}
	assert.Error(t, Seed(ctx, NewMemoryStore(), filepath.Join(t.TempDir(), "missing.yaml"), time.Now()))
}

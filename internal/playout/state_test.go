// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameClip(t *testing.T) {
	tests := []struct {
		reported, expected string
		want               bool
	}{
		{"media/a1", "media/a1", true},
		{"a1", "media/a1", true},
		{"media/a1", "a1", true},
		{"xa1", "media/a1", false},
		{"", "media/a1", false},
		{"a1", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sameClip(tt.reported, tt.expected), "%q vs %q", tt.reported, tt.expected)
	}
	assert.Equal(t, "media/clip one", normalizeName(`MEDIA\Clip One.MOV`))
	assert.Equal(t, "decklink", normalizeName("DeckLink"))
}

func TestSameStateIgnoresTime(t *testing.T) {
	a := Stat{ChannelID: 1, CurrentItem: 3, Position: 2, Time: t0}
	b := a
	b.Time = t0.Add(time.Second)
	assert.True(t, sameState(a, b))
	b.Position = 3
	assert.False(t, sameState(a, b))
	assert.Contains(t, cmp.Diff(a, b, cmpopts.IgnoreFields(Stat{}, "Time")), "Position")
}

func TestStatRemaining(t *testing.T) {
	assert.InDelta(t, 4, Stat{Position: 6, Duration: 10}.Remaining(), 0.001)
	assert.Zero(t, Stat{Position: 12, Duration: 10}.Remaining())
}

func TestBroadcastDay(t *testing.T) {
	six, err := ParseDayStart("06:00")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, six)

	_, err = ParseDayStart("6 o'clock")
	require.Error(t, err)
	zero, err := ParseDayStart("")
	require.NoError(t, err)
	assert.Zero(t, zero)

	loc := time.FixedZone("CET", 3600)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2026, 3, 2, 3, 0, 0, 0, loc), "2026-03-01T06:00:00+01:00"},
		{time.Date(2026, 3, 2, 6, 0, 0, 0, loc), "2026-03-02T06:00:00+01:00"},
		{time.Date(2026, 3, 2, 23, 59, 0, 0, loc), "2026-03-02T06:00:00+01:00"},
		{time.Date(2026, 3, 1, 1, 30, 0, 0, time.UTC), "2026-02-28T06:00:00+01:00"},
	}
	for _, tt := range tests {
		got := BroadcastDay(tt.at, six, loc)
		assert.Equal(t, tt.want, got.Format(time.RFC3339), tt.at.String())
	}
}

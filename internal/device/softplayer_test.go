// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPlayer(t *testing.T) (*SoftPlayer, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := NewSoftPlayer(Options{Now: clk.Now})
	require.NoError(t, p.Connect(context.Background()))
	return p, clk
}

func status(t *testing.T, p *SoftPlayer) Status {
	t.Helper()
	st, err := p.Status(context.Background())
	require.NoError(t, err)
	return st
}

func TestSoftPlayer_CueTakeAndAutoAdvance(t *testing.T) {
	p, clk := newTestPlayer(t)
	ctx := context.Background()

	require.True(t, p.Cue(ctx, "A", CueOptions{Duration: 10}).IsSuccess())
	st := status(t, p)
	assert.Empty(t, st.CurrentFilename)
	assert.Equal(t, "A", st.CuedFilename)

	require.True(t, p.Take(ctx).IsSuccess())
	require.True(t, p.Cue(ctx, "B", CueOptions{Duration: 5, Auto: true}).IsSuccess())
	clk.Advance(4 * time.Second)
	st = status(t, p)
	assert.Equal(t, "A", st.CurrentFilename)
	assert.Equal(t, "B", st.CuedFilename)
	assert.InDelta(t, 4, st.Position, 0.001)
	assert.InDelta(t, 10, st.Duration, 0.001)

	clk.Advance(7 * time.Second)
	st = status(t, p)
	assert.Equal(t, "B", st.CurrentFilename, "AUTO background follows when the foreground ends")
	assert.Empty(t, st.CuedFilename)
	assert.InDelta(t, 1, st.Position, 0.001, "B started when A ran out")
}

func TestSoftPlayer_HoldsWithoutAuto(t *testing.T) {
	p, clk := newTestPlayer(t)
	ctx := context.Background()

	require.True(t, p.Cue(ctx, "A", CueOptions{Duration: 2, Play: true}).IsSuccess())
	require.True(t, p.Cue(ctx, "B", CueOptions{Duration: 5}).IsSuccess())
	clk.Advance(5 * time.Second)

	st := status(t, p)
	assert.Equal(t, "A", st.CurrentFilename)
	assert.Equal(t, "B", st.CuedFilename)
	assert.InDelta(t, 2, st.Position, 0.001, "foreground holds on its last frame")
}

func TestSoftPlayer_FreezeAndResume(t *testing.T) {
	p, clk := newTestPlayer(t)
	ctx := context.Background()

	require.True(t, p.Cue(ctx, "A", CueOptions{Duration: 30, Play: true}).IsSuccess())
	clk.Advance(3 * time.Second)
	require.True(t, p.Freeze(ctx, true).IsSuccess())
	clk.Advance(10 * time.Second)
	st := status(t, p)
	assert.True(t, st.Paused)
	assert.InDelta(t, 3, st.Position, 0.001)

	require.True(t, p.Freeze(ctx, false).IsSuccess())
	clk.Advance(2 * time.Second)
	st = status(t, p)
	assert.False(t, st.Paused)
	assert.InDelta(t, 5, st.Position, 0.001)
	assert.Equal(t, []string{`PLAY "A"`, "PAUSE", "RESUME"}, p.Commands())
}

func TestSoftPlayer_AbortLoadsPausedAndKeepsBackground(t *testing.T) {
	p, clk := newTestPlayer(t)
	ctx := context.Background()

	require.True(t, p.Cue(ctx, "A", CueOptions{Duration: 30, Play: true}).IsSuccess())
	require.True(t, p.Cue(ctx, "B", CueOptions{Duration: 30}).IsSuccess())
	require.True(t, p.Abort(ctx, "B", CueOptions{Duration: 30}).IsSuccess())
	clk.Advance(5 * time.Second)

	st := status(t, p)
	assert.Equal(t, "B", st.CurrentFilename)
	assert.Equal(t, "B", st.CuedFilename)
	assert.True(t, st.Paused)
	assert.Zero(t, st.Position)
}

func TestSoftPlayer_LiveReportsProducer(t *testing.T) {
	p, clk := newTestPlayer(t)
	ctx := context.Background()

	require.True(t, p.Cue(ctx, "DECKLINK DEVICE 1", CueOptions{Live: true}).IsSuccess())
	assert.Equal(t, defaultLiveProducer, status(t, p).CuedFilename)
	require.True(t, p.Take(ctx).IsSuccess())
	clk.Advance(time.Hour)
	st := status(t, p)
	assert.Equal(t, defaultLiveProducer, st.CurrentFilename)
	assert.Zero(t, st.Duration, "live sources have no length")
}

func TestSoftPlayer_DisconnectedIsUnreachable(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Close())

	_, err := p.Status(context.Background())
	require.ErrorIs(t, err, ErrUnreachable)
	r := p.Take(context.Background())
	assert.Equal(t, 502, r.Code)
	assert.ErrorIs(t, r.Err, ErrUnreachable)
}

func TestSoftPlayer_TakeWithNothingLoaded(t *testing.T) {
	p, _ := newTestPlayer(t)
	r := p.Take(context.Background())
	assert.Equal(t, 404, r.Code)
	assert.ErrorIs(t, r.Err, ErrRejected)
}

func TestSoftPlayer_Clear(t *testing.T) {
	p, _ := newTestPlayer(t)
	ctx := context.Background()
	require.True(t, p.Cue(ctx, "A", CueOptions{Duration: 3, Play: true}).IsSuccess())
	require.True(t, p.Clear(ctx).IsSuccess())
	st := status(t, p)
	assert.Empty(t, st.CurrentFilename)
	assert.Empty(t, st.CuedFilename)
}

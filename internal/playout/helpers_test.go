// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/nebula/internal/device"
	"github.com/ManuGH/nebula/internal/notify"
	"github.com/ManuGH/nebula/internal/rundown"
)

const testChannel = 1

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixture is a small rundown written into a memory store.
type fixture struct {
	assets []rundown.Asset
	bins   []rundown.Bin
	events []rundown.Event
}

func asset(id int64, dur float64) rundown.Asset {
	return rundown.Asset{ID: id, Path: fmt.Sprintf("media/a%d.mp4", id), Duration: dur, Title: fmt.Sprintf("asset %d", id)}
}

func item(id, assetID int64, pos int) rundown.Item {
	return rundown.Item{ID: id, AssetID: assetID, Position: pos}
}

func virtual(id int64, role rundown.Role, pos int) rundown.Item {
	return rundown.Item{ID: id, Role: role, Position: pos}
}

func event(id int64, start time.Time, mode rundown.RunMode, bin int64) rundown.Event {
	return rundown.Event{ID: id, ChannelID: testChannel, Start: start, RunMode: mode, BinID: bin}
}

func (f fixture) store(t *testing.T) *rundown.MemoryStore {
	t.Helper()
	ctx := context.Background()
	st := rundown.NewMemoryStore()
	for _, a := range f.assets {
		require.NoError(t, st.PutAsset(ctx, a))
	}
	for _, b := range f.bins {
		require.NoError(t, st.PutBin(ctx, b))
	}
	for _, e := range f.events {
		require.NoError(t, st.PutEvent(ctx, e))
	}
	return st
}

type harness struct {
	t      *testing.T
	clk    *testClock
	store  *rundown.MemoryStore
	player *device.SoftPlayer
	bus    *notify.MemoryBus
	svc    *Service
}

type harnessOption func(*Config, *Deps)

func withController(wrap func(*device.SoftPlayer) device.Controller) harnessOption {
	return func(_ *Config, d *Deps) { d.Device = wrap(d.Device.(*device.SoftPlayer)) }
}

func newHarness(t *testing.T, f fixture, opts ...harnessOption) *harness {
	t.Helper()
	clk := &testClock{t: t0}
	store := f.store(t)
	player := device.NewSoftPlayer(device.Options{Now: clk.Now})
	require.NoError(t, player.Connect(context.Background()))
	bus := notify.NewMemoryBus()

	cfg := Config{ChannelID: testChannel, Name: "test", Location: time.UTC}
	deps := Deps{
		Device:   player,
		Store:    store,
		Notifier: notify.NewNotifier(bus, notify.NotifierConfig{ChannelID: testChannel, MaxRate: 1000, Now: clk.Now}),
		Now:      clk.Now,
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	svc, err := New(cfg, deps)
	require.NoError(t, err)
	return &harness{t: t, clk: clk, store: store, player: player, bus: bus, svc: svc}
}

func (h *harness) tick() {
	h.svc.Poller().Tick(context.Background())
}

func (h *harness) requireOK(r Result) Result {
	h.t.Helper()
	require.True(h.t, r.OK(), "unexpected result %s", r)
	return r
}

// drain returns the messages buffered on a subscription.
func drain(sub notify.Subscriber) []notify.Message {
	var out []notify.Message
	for {
		select {
		case m := <-sub.C():
			out = append(out, m)
		default:
			return out
		}
	}
}

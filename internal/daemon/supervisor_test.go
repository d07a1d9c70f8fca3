// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/health"
	"github.com/ManuGH/nebula/internal/rundown"
)

// softConfig builds a validated-shape config of softplayer channels.
func softConfig(t *testing.T, names map[int]string) config.AppConfig {
	t.Helper()
	var b strings.Builder
	b.WriteString("store:\n  backend: memory\nchannels:\n")
	for id := 1; id <= 9; id++ {
		name, ok := names[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  - id: %d\n    name: %s\n    device:\n      kind: softplayer\n      pollInterval: 20ms\n", id, name)
	}
	cfg, err := config.Parse([]byte(b.String()))
	require.NoError(t, err)
	return cfg
}

type countingFactory struct {
	inner ChannelFactory

	mu     sync.Mutex
	builds map[int]int
	failOn map[int]int
}

func newCountingFactory() *countingFactory {
	return &countingFactory{
		inner:  NewChannelFactory(ChannelDeps{Store: rundown.NewMemoryStore(), Now: time.Now}),
		builds: make(map[int]int),
		failOn: make(map[int]int),
	}
}

func (f *countingFactory) build(ch config.ChannelConfig) (*ChannelRuntime, error) {
	f.mu.Lock()
	f.builds[ch.ID]++
	if f.failOn[ch.ID] > 0 {
		f.failOn[ch.ID]--
		f.mu.Unlock()
		return nil, errors.New("device refused")
	}
	f.mu.Unlock()
	return f.inner(ch)
}

func (f *countingFactory) count(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds[id]
}

func TestSupervisorApply(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newCountingFactory()
	hm := health.NewManager("test")
	sup := NewSupervisor(f.build, hm)
	ctx := context.Background()

	require.NoError(t, sup.Apply(ctx, softConfig(t, map[int]string{1: "main", 2: "second"})))
	assert.Equal(t, []int{1, 2}, sup.Channels())
	assert.Equal(t, []string{"channel-1", "channel-2"}, hm.Names())

	svc, err := sup.Channel(2)
	require.NoError(t, err)
	assert.Equal(t, "second", svc.Config().Name)

	// 1 removed, 2 changed, 3 added.
	require.NoError(t, sup.Apply(ctx, softConfig(t, map[int]string{2: "renamed", 3: "third"})))
	assert.Equal(t, []int{2, 3}, sup.Channels())
	assert.Equal(t, []string{"channel-2", "channel-3"}, hm.Names())
	assert.Equal(t, 1, f.count(1))
	assert.Equal(t, 2, f.count(2))
	assert.Equal(t, 1, f.count(3))

	_, err = sup.Channel(1)
	require.ErrorIs(t, err, ErrUnknownChannel)
	_, ok := sup.Lookup(1)
	assert.False(t, ok)
	view, ok := sup.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, 2, view.Stat().ChannelID)

	// Unchanged config does nothing.
	require.NoError(t, sup.Apply(ctx, softConfig(t, map[int]string{2: "renamed", 3: "third"})))
	assert.Equal(t, 2, f.count(2))

	sup.StopAll()
	assert.Empty(t, sup.Channels())
	assert.Empty(t, hm.Names())
}

func TestSupervisorRetriesFailedChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newCountingFactory()
	f.failOn[2] = 1
	sup := NewSupervisor(f.build, nil)
	defer sup.StopAll()

	cfg := softConfig(t, map[int]string{1: "main", 2: "second"})
	err := sup.Apply(context.Background(), cfg)
	require.ErrorContains(t, err, "start channel 2")
	assert.Equal(t, []int{1}, sup.Channels())

	require.NoError(t, sup.Apply(context.Background(), cfg))
	assert.Equal(t, []int{1, 2}, sup.Channels())
	assert.Equal(t, 1, f.count(1), "running channel untouched")
	assert.Equal(t, 2, f.count(2))
}

func TestSupervisorRunFollowsUpdates(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newCountingFactory()
	sup := NewSupervisor(f.build, nil)
	updates := make(chan config.AppConfig)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, softConfig(t, map[int]string{1: "main"}), updates) }()

	require.Eventually(t, func() bool { return len(sup.Channels()) == 1 }, 2*time.Second, 10*time.Millisecond)
	updates <- softConfig(t, map[int]string{1: "main", 4: "fourth"})
	require.Eventually(t, func() bool { return len(sup.Channels()) == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.Empty(t, sup.Channels())
}

func TestSupervisorRunFailsOnInitialBuildError(t *testing.T) {
	f := newCountingFactory()
	f.failOn[1] = 1
	sup := NewSupervisor(f.build, nil)
	err := sup.Run(context.Background(), softConfig(t, map[int]string{1: "main", 2: "second"}), nil)
	require.Error(t, err)
	assert.Empty(t, sup.Channels())
}

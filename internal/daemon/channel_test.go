// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/health"
	"github.com/ManuGH/nebula/internal/rundown"
)

func parseChannel(t *testing.T, yaml string) config.ChannelConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	require.Len(t, cfg.Channels, 1)
	return cfg.Channels[0]
}

func TestServiceConfig(t *testing.T) {
	ch := parseChannel(t, `
channels:
  - id: 2
    name: news
    fps: 50
    dayStart: "05:30"
    timezone: Europe/Prague
    skipWhen: 'title == "Weather"'
    recoverOnStart: false
    plugins: [asrun]
    device:
      kind: softplayer
      pollInterval: 100ms
      commandTimeout: 3s
`)
	cfg, err := ServiceConfig(ch)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.ChannelID)
	assert.Equal(t, "news", cfg.Name)
	assert.InDelta(t, 50.0, cfg.FPS, 0)
	assert.Equal(t, 5*time.Hour+30*time.Minute, cfg.DayStart)
	assert.Equal(t, "Europe/Prague", cfg.Location.String())
	require.NotNil(t, cfg.SkipWhen)
	assert.False(t, cfg.RecoverOnStart)
	assert.Equal(t, []string{"asrun"}, cfg.Plugins)
	assert.Equal(t, 100*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 3*time.Second, cfg.Poll.ReadTimeout)
	assert.Equal(t, 2, cfg.Poll.ChannelID)

	ch.Timezone = "Mars/Olympus"
	_, err = ServiceConfig(ch)
	require.ErrorContains(t, err, "timezone")

	ch.Timezone = ""
	ch.DayStart = "25:00"
	_, err = ServiceConfig(ch)
	require.Error(t, err)
}

func TestChannelFactory(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewTelemetryHub(context.Background(), "127.0.0.1", time.Second)
	defer hub.Close()
	factory := NewChannelFactory(ChannelDeps{Store: rundown.NewMemoryStore(), Telemetry: hub})

	soft := parseChannel(t, "channels:\n  - id: 1\n    device:\n      kind: softplayer\n")
	rt, err := factory(soft)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.Service.ID())
	assert.Equal(t, health.ChannelCheckName(1), rt.Checker.Name())
	require.NoError(t, rt.Service.Close())
	assert.Empty(t, hub.Ports(), "softplayer needs no telemetry listener")

	caspar := parseChannel(t, "channels:\n  - id: 7\n    device:\n      kind: casparcg\n")
	caspar.Device.OSCPort = 0 // ephemeral
	rt, err = factory(caspar)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, hub.Ports())
	assert.Equal(t, health.StatusUnhealthy, rt.Checker.Check(context.Background()).Status, "not connected yet")
	require.NoError(t, rt.Service.Close())

	_, err = NewChannelFactory(ChannelDeps{Store: rundown.NewMemoryStore()})(caspar)
	require.ErrorContains(t, err, "telemetry hub")
}

func TestTelemetryHubSharesPorts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewTelemetryHub(context.Background(), "127.0.0.1", 0)
	a, err := hub.State(0)
	require.NoError(t, err)
	b, err := hub.State(0)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []int{0}, hub.Ports())

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())
	_, err = hub.State(0)
	require.ErrorIs(t, err, ErrHubClosed)
}

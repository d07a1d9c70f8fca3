// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/nebula/internal/validate"
)

const minimalYAML = `
dataDir: %s
channels:
  - id: 1
    device:
      kind: softplayer
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("channels:\n  - id: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultDataDir, cfg.Store.Path, "store path follows dataDir")
	require.Len(t, cfg.Channels, 1)
	ch := cfg.Channels[0]
	assert.Equal(t, "channel-3", ch.Name)
	assert.Equal(t, "casparcg", ch.Device.Kind)
	assert.Equal(t, 5250, ch.Device.AMCPPort)
	assert.Equal(t, 10, ch.Device.Layer)
	assert.Equal(t, 200*time.Millisecond, ch.Device.PollInterval)
	assert.Equal(t, 25.0, ch.FPS)
	assert.Equal(t, "decklink", ch.LiveProducer)
	assert.True(t, ch.Recover(), "recoverOnStart defaults to true")
}

func TestParseStrict(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		_, err := Parse([]byte("channels:\n  - id: 1\n    devcie: {}\n"))
		require.ErrorIs(t, err, ErrUnknownConfigField)
	})
	t.Run("multiple documents", func(t *testing.T) {
		_, err := Parse([]byte("logLevel: info\n---\nlogLevel: debug\n"))
		require.ErrorIs(t, err, ErrMultipleDocuments)
	})
	t.Run("empty document", func(t *testing.T) {
		cfg, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, Defaults().Ops, cfg.Ops)
	})
	t.Run("bad duration", func(t *testing.T) {
		_, err := Parse([]byte("ops:\n  readTimeout: soon\n"))
		require.Error(t, err)
	})
	t.Run("explicit recoverOnStart false", func(t *testing.T) {
		cfg, err := Parse([]byte("channels:\n  - id: 1\n    recoverOnStart: false\n"))
		require.NoError(t, err)
		assert.False(t, cfg.Channels[0].Recover())
	})
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, strings.ReplaceAll(minimalYAML, "%s", dir)+"logLevel: warn\nnotify:\n  backend: redis\n")

	t.Setenv("NEBULA_LOG_LEVEL", "debug")
	t.Setenv("NEBULA_OPS_RATE_LIMIT", "30")
	t.Setenv("NEBULA_TELEMETRY_ENABLED", "yes")
	t.Setenv("NEBULA_NOTIFY_MAX_RATE", "not-a-number")

	l := NewLoader(path, "v1.0.0")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "env beats file")
	assert.Equal(t, "redis", cfg.Notify.Backend, "file beats default")
	assert.Equal(t, 30, cfg.Ops.RateLimit)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, Defaults().Notify.MaxRate, cfg.Notify.MaxRate, "invalid env falls back")
	assert.Equal(t, dir, cfg.Store.Path)
	assert.Contains(t, l.ConsumedEnvKeys, "NEBULA_LOG_LEVEL")
	assert.Equal(t, "v1.0.0", l.Version())
}

func TestLoaderRejectsNonYAML(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "config.toml"), "").Load()
	require.ErrorContains(t, err, "only YAML")
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), "").Load()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultFileIsValid(t *testing.T) {
	cfg, err := Parse([]byte(DefaultFile))
	require.NoError(t, err)
	cfg.Store.Path = t.TempDir()
	require.NoError(t, Validate(cfg))

	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, []string{"asrun", "cuefirst"}, cfg.Channels[0].Plugins)
	assert.Equal(t, "06:00", cfg.Channels[0].DayStart)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) AppConfig {
		cfg, err := Parse([]byte("channels:\n  - id: 1\n  - id: 2\n    device: {layer: 20}\n"))
		require.NoError(t, err)
		cfg.Store.Path = t.TempDir()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"bad log level", func(c *AppConfig) { c.LogLevel = "loud" }, "logLevel"},
		{"bad store backend", func(c *AppConfig) { c.Store.Backend = "badger" }, "store.backend"},
		{"bad listen addr", func(c *AppConfig) { c.Ops.ListenAddr = "9090" }, "ops.listenAddr"},
		{"mqtt qos", func(c *AppConfig) { c.Notify.Backend = "mqtt"; c.Notify.MQTT.QoS = 3 }, "notify.mqtt.qos"},
		{"sampling rate", func(c *AppConfig) { c.Telemetry.SamplingRate = 2 }, "telemetry.samplingRate"},
		{"cache backend", func(c *AppConfig) { c.Cache.Backend = "disk" }, "cache.backend"},
		{"no channels", func(c *AppConfig) { c.Channels = nil }, "channels"},
		{"duplicate id", func(c *AppConfig) { c.Channels[1].ID = 1 }, "channels[1].id"},
		{"same output", func(c *AppConfig) { c.Channels[1].Device.Layer = 10 }, "channels[1].device"},
		{"device kind", func(c *AppConfig) { c.Channels[0].Device.Kind = "vlc" }, "channels[0].device.kind"},
		{"day start", func(c *AppConfig) { c.Channels[0].DayStart = "25:99" }, "channels[0].dayStart"},
		{"timezone", func(c *AppConfig) { c.Channels[0].Timezone = "Mars/Olympus" }, "channels[0].timezone"},
		{"skip predicate", func(c *AppConfig) { c.Channels[0].SkipWhen = "title ==" }, "channels[0].skipWhen"},
		{"plugin", func(c *AppConfig) { c.Channels[0].Plugins = []string{"nope"} }, "channels[0].plugins[0]"},
		{"fps", func(c *AppConfig) { c.Channels[0].FPS = -1 }, "channels[0].fps"},
	}

	require.NoError(t, Validate(base(t)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)

			var verr validate.ValidationError
			require.True(t, errors.As(err, &verr))
			var fields []string
			for _, e := range verr.Errors() {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestSoftplayerSkipsNetworkChecks(t *testing.T) {
	cfg, err := Parse([]byte("channels:\n  - id: 1\n    device: {kind: softplayer, amcpPort: -1}\n"))
	require.NoError(t, err)
	cfg.Store.Backend = "memory"
	assert.NoError(t, Validate(cfg))
}

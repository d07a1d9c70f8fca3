// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureAttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "nebula-test", Version: "v9"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("playout")
	l.Debug().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "nebula-test", entry["service"])
	assert.Equal(t, "v9", entry["version"])
	assert.Equal(t, "playout", entry[FieldComponent])
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestConfigureInvalidLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	Configure(Config{Level: "not-a-level"})
	t.Cleanup(func() { Configure(Config{}) })
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestWithChannel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithChannel("device", 2)
	l.Info().Msg("tick")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "device", entry[FieldComponent])
	assert.EqualValues(t, 2, entry[FieldChannelID])
}

func TestDerive(t *testing.T) {
	logger1 := Derive(nil)
	if logger1.GetLevel() > zerolog.PanicLevel {
		t.Error("Expected valid logger from Derive with nil builder")
	}

	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := Derive(func(c *zerolog.Context) { *c = c.Str("custom", "x") })
	l.Info().Msg("derived")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "x", entry["custom"])
}

func TestL(t *testing.T) {
	require.NotNil(t, L())
}

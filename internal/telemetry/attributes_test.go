// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestAMCPAttributes(t *testing.T) {
	m := attrMap(AMCPAttributes("127.0.0.1:5250", "PLAY", `PLAY 1-10 "clip"`, 202))

	assert.Len(t, m, 4)
	assert.Equal(t, "127.0.0.1:5250", m[DeviceAddrKey].AsString())
	assert.Equal(t, "PLAY", m[AMCPVerbKey].AsString())
	assert.Equal(t, `PLAY 1-10 "clip"`, m[AMCPCommandKey].AsString())
	assert.EqualValues(t, 202, m[AMCPStatusCodeKey].AsInt64())
}

func TestPlayoutAttributesOmitZeroIDs(t *testing.T) {
	tests := []struct {
		name    string
		command string
		itemID  int64
		eventID int64
		want    []string
	}{
		{name: "channel only", want: []string{PlayoutChannelKey}},
		{name: "command", command: "take", want: []string{PlayoutChannelKey, PlayoutCommandKey}},
		{name: "all", command: "cue", itemID: 42, eventID: 7, want: []string{PlayoutChannelKey, PlayoutCommandKey, PlayoutItemKey, PlayoutEventKey}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := attrMap(PlayoutAttributes(3, tt.command, tt.itemID, tt.eventID))
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.want, keys)
			assert.EqualValues(t, 3, m[PlayoutChannelKey].AsInt64())
			if tt.itemID != 0 {
				assert.Equal(t, tt.itemID, m[PlayoutItemKey].AsInt64())
			}
		})
	}
}

func TestRecoveryAttributes(t *testing.T) {
	m := attrMap(RecoveryAttributes("played", 9, 0.25))

	assert.Equal(t, "played", m[RecoveryOutcomeKey].AsString())
	assert.EqualValues(t, 9, m[RecoveryAsRunKey].AsInt64())
	assert.InDelta(t, 0.25, m[RecoveryElapsedKey].AsFloat64(), 1e-9)
}

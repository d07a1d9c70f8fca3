// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the engine.
const (
	// Device command attributes
	AMCPVerbKey       = "amcp.verb"
	AMCPCommandKey    = "amcp.command"
	AMCPStatusCodeKey = "amcp.status_code"
	DeviceAddrKey     = "device.addr"
	DeviceKindKey     = "device.kind"

	// Playout attributes
	PlayoutChannelKey = "playout.channel"
	PlayoutItemKey    = "playout.item_id"
	PlayoutEventKey   = "playout.event_id"
	PlayoutCommandKey = "playout.command"

	// Recovery attributes
	RecoveryOutcomeKey = "recovery.outcome"
	RecoveryAsRunKey   = "recovery.asrun_id"
	RecoveryElapsedKey = "recovery.elapsed"
)

// AMCPAttributes creates span attributes for one device command round trip.
func AMCPAttributes(addr, verb, command string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DeviceAddrKey, addr),
		attribute.String(AMCPVerbKey, verb),
		attribute.String(AMCPCommandKey, command),
		attribute.Int(AMCPStatusCodeKey, statusCode),
	}
}

// PlayoutAttributes creates channel-scoped span attributes. Zero ids are omitted.
func PlayoutAttributes(channel int, command string, itemID, eventID int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	attrs = append(attrs, attribute.Int(PlayoutChannelKey, channel))
	if command != "" {
		attrs = append(attrs, attribute.String(PlayoutCommandKey, command))
	}
	if itemID != 0 {
		attrs = append(attrs, attribute.Int64(PlayoutItemKey, itemID))
	}
	if eventID != 0 {
		attrs = append(attrs, attribute.Int64(PlayoutEventKey, eventID))
	}
	return attrs
}

// RecoveryAttributes describes the outcome of a channel recovery.
func RecoveryAttributes(outcome string, asRunID int64, elapsedSeconds float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RecoveryOutcomeKey, outcome),
		attribute.Int64(RecoveryAsRunKey, asRunID),
		attribute.Float64(RecoveryElapsedKey, elapsedSeconds),
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldChannelID     = "channel_id"
	FieldItemID        = "item_id"
	FieldEventID       = "event_id"
	FieldBinID         = "bin_id"
	FieldAssetID       = "asset_id"
	FieldAsRunID       = "asrun_id"
	FieldPluginID      = "plugin_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Device fields
	FieldDevice     = "device"
	FieldFilename   = "fname"
	FieldLayer      = "layer"
	FieldCommand    = "command"
	FieldStatusCode = "status_code"
	FieldAttempt    = "attempt"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldRunMode  = "run_mode"

	// Network fields
	FieldAddr    = "addr"
	FieldOSCPort = "osc_port"
)

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package amcp

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnreachable  = errors.New("amcp: device unreachable or transport failure")
	ErrProtocol     = errors.New("amcp: malformed response")
	ErrRejected     = errors.New("amcp: command rejected by device")
	ErrNotConnected = errors.New("amcp: not connected")
)

// Error is a non-2xx reply. It unwraps to ErrRejected.
type Error struct {
	Code    int
	Command string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("amcp: %s: %d %s", e.Command, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return ErrRejected }

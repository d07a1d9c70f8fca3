// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/nebula/internal/device"
)

var (
	// ErrNotCueable means the item's media is not usable on this channel.
	ErrNotCueable = errors.New("playout: item not cueable")
	// ErrNothingCued is returned by take and friends with no pending item.
	ErrNothingCued = errors.New("playout: nothing cued")
	// ErrDeviceUnreachable covers connection failures and timeouts.
	ErrDeviceUnreachable = errors.New("playout: device unreachable")
	// ErrProtocol is a malformed device reply.
	ErrProtocol = errors.New("playout: protocol error")
	// ErrDeviceRejected is a well formed failure reply from the device.
	ErrDeviceRejected = errors.New("playout: device rejected command")
	// ErrResolutionExhausted means no playable next item was found within
	// the retry bound.
	ErrResolutionExhausted = errors.New("playout: resolution exhausted")
	// ErrRecoveryInconsistent means recovery found no as-run entry to work from.
	ErrRecoveryInconsistent = errors.New("playout: recovery inconsistent")
	// ErrLiveItem refuses operations that make no sense on a live source.
	ErrLiveItem = errors.New("playout: not possible on a live item")
	// ErrAlreadyLive refuses cueing a live item while live is on air.
	ErrAlreadyLive = errors.New("playout: channel is already live")
	// ErrUnknownPlugin is returned for plugin ids nobody registered.
	ErrUnknownPlugin = errors.New("playout: unknown plugin")
	// ErrCueInFlight means a previous cue did not finish within the command
	// timeout.
	ErrCueInFlight = errors.New("playout: cue in flight")
	// ErrNotFound wraps store lookups that matched nothing.
	ErrNotFound = errors.New("playout: not found")
)

// Result is what every command returns. Code follows HTTP semantics so a
// transport can pass it through unchanged.
type Result struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Err     error  `json:"-"`
}

// OK reports a 2xx result.
func (r Result) OK() bool { return r.Code >= 200 && r.Code < 300 }

func (r Result) String() string { return fmt.Sprintf("%d %s", r.Code, r.Message) }

func okResult(msg string, data any) Result {
	return Result{Code: http.StatusOK, Message: msg, Data: data}
}

func failResult(code int, err error) Result {
	return Result{Code: code, Message: err.Error(), Err: err}
}

// errorResult picks the code for err from the sentinel it wraps.
func errorResult(err error) Result {
	switch {
	case errors.Is(err, ErrNothingCued), errors.Is(err, ErrNotCueable):
		return failResult(http.StatusBadRequest, err)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownPlugin):
		return failResult(http.StatusNotFound, err)
	case errors.Is(err, ErrLiveItem), errors.Is(err, ErrAlreadyLive), errors.Is(err, ErrRecoveryInconsistent),
		errors.Is(err, ErrCueInFlight):
		return failResult(http.StatusConflict, err)
	case errors.Is(err, ErrDeviceUnreachable), errors.Is(err, ErrProtocol):
		return failResult(http.StatusBadGateway, err)
	case errors.Is(err, ErrResolutionExhausted):
		return failResult(http.StatusNotFound, err)
	}
	return failResult(http.StatusInternalServerError, err)
}

// deviceResult maps a device response onto the playout taxonomy.
func deviceResult(r device.Response) Result {
	if r.IsSuccess() {
		return Result{Code: http.StatusOK, Message: r.Message}
	}
	cause := r.Err
	if cause == nil {
		cause = fmt.Errorf("device replied %d %s", r.Code, r.Message)
	}
	switch {
	case errors.Is(cause, device.ErrUnreachable):
		return failResult(http.StatusBadGateway, fmt.Errorf("%w: %v", ErrDeviceUnreachable, cause))
	case errors.Is(cause, device.ErrProtocol):
		return failResult(http.StatusBadGateway, fmt.Errorf("%w: %v", ErrProtocol, cause))
	}
	code := r.Code
	if code < 400 {
		code = http.StatusInternalServerError
	}
	return failResult(code, fmt.Errorf("%w: %v", ErrDeviceRejected, cause))
}

func outcome(r Result) string {
	switch {
	case r.OK():
		return "ok"
	case r.Code < 500:
		return "rejected"
	}
	return "failed"
}

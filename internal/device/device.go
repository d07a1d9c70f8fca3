// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package device adapts concrete playback backends to one capability set and
// runs the status polling loop that feeds a channel's reconciliation.
package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/nebula/internal/amcp"
	"github.com/ManuGH/nebula/internal/osc"
)

// Kind selects a backend. It is resolved once when a channel starts.
type Kind string

const (
	KindCaspar     Kind = "casparcg"
	KindSoftPlayer Kind = "softplayer"
)

var (
	// ErrUnreachable covers connection failures, timeouts and stale telemetry.
	ErrUnreachable = errors.New("device: unreachable")
	// ErrStale means the device stopped reporting telemetry.
	ErrStale = fmt.Errorf("%w: telemetry stale", ErrUnreachable)
	// ErrProtocol is an unparsable reply.
	ErrProtocol = errors.New("device: protocol error")
	// ErrRejected is a well formed non-2xx reply.
	ErrRejected = errors.New("device: command rejected")
)

// Status is one snapshot of the layer the channel plays on.
type Status struct {
	CurrentFilename string
	CuedFilename    string
	Position        float64
	Duration        float64
	Paused          bool
	Loop            bool
	Producer        string
	FPS             float64
	UpdatedAt       time.Time
}

// Response is the outcome of a device command. Err is nil on success and
// wraps one of the package sentinels otherwise.
type Response struct {
	Code    int
	Message string
	Err     error
}

// IsSuccess reports a 2xx outcome.
func (r Response) IsSuccess() bool { return r.Code >= 200 && r.Code < 300 }

func success(code int, msg string) Response { return Response{Code: code, Message: msg} }

// fromError maps a backend error to a Response with an HTTP-like code.
func fromError(err error) Response {
	var aerr *amcp.Error
	switch {
	case errors.As(err, &aerr):
		return Response{Code: aerr.Code, Message: aerr.Message, Err: fmt.Errorf("%w: %v", ErrRejected, err)}
	case errors.Is(err, amcp.ErrProtocol):
		return Response{Code: http.StatusInternalServerError, Message: err.Error(), Err: fmt.Errorf("%w: %v", ErrProtocol, err)}
	case errors.Is(err, ErrUnreachable), errors.Is(err, amcp.ErrUnreachable), errors.Is(err, context.DeadlineExceeded):
		return Response{Code: http.StatusBadGateway, Message: err.Error(), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	default:
		return Response{Code: http.StatusInternalServerError, Message: err.Error(), Err: err}
	}
}

// Controller is the capability set every backend implements. Implementations
// are not required to serialise callers; the channel service does that.
type Controller interface {
	Connect(ctx context.Context) error
	Close() error
	Query(ctx context.Context, cmd string) Response
	Cue(ctx context.Context, name string, opts CueOptions) Response
	Take(ctx context.Context) Response
	Retake(ctx context.Context, name string, opts CueOptions) Response
	Freeze(ctx context.Context, pause bool) Response
	Abort(ctx context.Context, name string, opts CueOptions) Response
	Clear(ctx context.Context) Response
	Status(ctx context.Context) (Status, error)
	// Position and Duration return the values of the last successful Status.
	Position() float64
	Duration() float64
}

// Options configures a backend.
type Options struct {
	Kind Kind
	// Channel and Layer address the device output.
	Channel int
	Layer   int

	// casparcg
	Addr           string
	CommandTimeout time.Duration
	Telemetry      *osc.State
	StaleAfter     time.Duration

	// softplayer
	LiveProducer string

	Now func() time.Time
}

// New builds the backend selected by opts.Kind.
func New(opts Options) (Controller, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Layer <= 0 {
		opts.Layer = 10
	}
	if opts.Channel <= 0 {
		opts.Channel = 1
	}
	switch opts.Kind {
	case KindCaspar:
		if opts.Telemetry == nil {
			return nil, errors.New("device: casparcg backend requires a telemetry state")
		}
		if opts.Addr == "" {
			return nil, errors.New("device: casparcg backend requires an address")
		}
		return NewCaspar(opts), nil
	case KindSoftPlayer:
		return NewSoftPlayer(opts), nil
	default:
		return nil, fmt.Errorf("device: unsupported kind %q", opts.Kind)
	}
}

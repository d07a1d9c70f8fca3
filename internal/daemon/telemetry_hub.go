// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/osc"
)

// ErrHubClosed is returned by State after Close.
var ErrHubClosed = errors.New("telemetry hub closed")

// TelemetryHub owns one OSC listener per UDP port. Channels of the same
// device server share a port and therefore one state tree.
type TelemetryHub struct {
	bindHost string
	slotTTL  time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	listeners map[int]*oscListener
	closed    bool
	wg        sync.WaitGroup
}

type oscListener struct {
	srv   *osc.Server
	state *osc.State
}

// NewTelemetryHub creates a hub. Listeners stop when ctx ends or on Close.
func NewTelemetryHub(ctx context.Context, bindHost string, slotTTL time.Duration) *TelemetryHub {
	ctx, cancel := context.WithCancel(ctx)
	return &TelemetryHub{
		bindHost:  bindHost,
		slotTTL:   slotTTL,
		logger:    log.WithComponent("osc"),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]*oscListener),
	}
}

// State returns the telemetry tree fed by port, starting its listener on
// first use.
func (h *TelemetryHub) State(port int) (*osc.State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	if l, ok := h.listeners[port]; ok {
		return l.state, nil
	}

	state := osc.NewState(h.slotTTL)
	srv, err := osc.Listen(net.JoinHostPort(h.bindHost, strconv.Itoa(port)), state)
	if err != nil {
		return nil, fmt.Errorf("telemetry listener on port %d: %w", port, err)
	}
	h.listeners[port] = &oscListener{srv: srv, state: state}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := srv.Serve(h.ctx); err != nil {
			h.logger.Error().Err(err).Int(log.FieldOSCPort, port).Msg("telemetry listener failed")
		}
	}()
	return state, nil
}

// Ports returns the ports with a running listener.
func (h *TelemetryHub) Ports() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	ports := make([]int, 0, len(h.listeners))
	for p := range h.listeners {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// Close stops every listener and waits for them.
func (h *TelemetryHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.cancel()
	var errs []error
	for _, l := range h.listeners {
		if err := l.srv.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.mu.Unlock()

	h.wg.Wait()
	return errors.Join(errs...)
}

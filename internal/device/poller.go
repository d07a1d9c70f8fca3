// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"sync/atomic"
	"time"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	defaultPollInterval   = 200 * time.Millisecond
	defaultReconnectAfter = 10
	defaultLogEvery       = 10
)

// Observer receives every successful status read.
type Observer interface {
	OnStatus(ctx context.Context, st Status)
}

// ErrorObserver is optionally implemented by observers that want to know
// about failed reads.
type ErrorObserver interface {
	OnStatusError(ctx context.Context, err error, consecutive int)
}

// PollerConfig tunes the polling loop.
type PollerConfig struct {
	// ChannelID labels metrics and logs.
	ChannelID      int
	Interval       time.Duration
	ReconnectAfter int
	// LogEvery limits failure logging to the first and every Nth failure.
	LogEvery int
	// ReadTimeout bounds one Status call.
	ReadTimeout time.Duration
	Logger      *zerolog.Logger
}

// Poller refreshes device state at a fixed cadence. It never stops on a
// failed read; after ReconnectAfter consecutive failures it reconnects.
type Poller struct {
	ctrl     Controller
	observer Observer
	cfg      PollerConfig
	logger   zerolog.Logger

	badRequests atomic.Int64
	reconnects  atomic.Int64
	busy        atomic.Bool
}

// NewPoller wires a controller to an observer.
func NewPoller(ctrl Controller, observer Observer, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.ReconnectAfter <= 0 {
		cfg.ReconnectAfter = defaultReconnectAfter
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = defaultLogEvery
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	logger := nlog.WithChannel("device", cfg.ChannelID)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Poller{ctrl: ctrl, observer: observer, cfg: cfg, logger: logger}
}

// BadRequests is the current count of consecutive failed reads.
func (p *Poller) BadRequests() int { return int(p.badRequests.Load()) }

// Reconnects is the number of forced reconnects so far.
func (p *Poller) Reconnects() int { return int(p.reconnects.Load()) }

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().Dur("interval", p.cfg.Interval).Msg("device poller started")
	defer p.logger.Info().Msg("device poller stopped")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one poll. It is exported for deterministic tests and
// ignores calls while a previous tick is still running.
func (p *Poller) Tick(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		return
	}
	defer p.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("status handler panicked")
		}
	}()

	readCtx, cancel := context.WithTimeout(ctx, p.cfg.ReadTimeout)
	st, err := p.ctrl.Status(readCtx)
	cancel()
	if err != nil {
		p.fail(ctx, err)
		return
	}

	if n := p.badRequests.Swap(0); n > 0 {
		p.logger.Info().Int64("failures", n).Msg("device status recovered")
	}
	metrics.SetDeviceConnected(p.cfg.ChannelID, true)
	p.observer.OnStatus(ctx, st)
}

func (p *Poller) fail(ctx context.Context, err error) {
	n := p.badRequests.Add(1)
	metrics.IncDeviceBadRequest(p.cfg.ChannelID)
	metrics.SetDeviceConnected(p.cfg.ChannelID, false)
	if n == 1 || n%int64(p.cfg.LogEvery) == 0 {
		p.logger.Error().Err(err).Int64("consecutive", n).Msg("device status read failed")
	}
	if eo, ok := p.observer.(ErrorObserver); ok {
		eo.OnStatusError(ctx, err, int(n))
	}
	if n < int64(p.cfg.ReconnectAfter) {
		return
	}

	p.reconnects.Add(1)
	p.badRequests.Store(0)
	_ = p.ctrl.Close()
	if cerr := p.ctrl.Connect(ctx); cerr != nil {
		metrics.IncDeviceReconnect(p.cfg.ChannelID, "failed")
		p.logger.Warn().Err(cerr).Msg("device reconnect failed")
		return
	}
	metrics.IncDeviceReconnect(p.cfg.ChannelID, "ok")
	p.logger.Warn().Int(nlog.FieldAttempt, int(p.reconnects.Load())).Msg("device reconnected")
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playout is the channel service: it owns the on-air state of one
// channel, drives its device and keeps the as-run log.
package playout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/nebula/internal/device"
	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
	"github.com/ManuGH/nebula/internal/notify"
	"github.com/ManuGH/nebula/internal/predicate"
	"github.com/ManuGH/nebula/internal/rundown"
	"github.com/ManuGH/nebula/internal/telemetry"
)

const (
	defaultStallGrace   = 3 * time.Second
	defaultCueRetry     = 5 * time.Second
	defaultCueTimeout   = 5 * time.Second
	defaultLiveProducer = "decklink"
	defaultLiveSource   = "DECKLINK 1"

	// mismatchGrace is how long a fresh cue may be missing from the
	// background before it is considered lost.
	mismatchGrace = time.Second
	// stallWindow is how close to the end a clip counts as finished.
	stallWindow = 0.5
)

// Config is the immutable per-channel configuration.
type Config struct {
	ChannelID int
	Name      string
	FPS       float64
	DayStart  time.Duration
	Location  *time.Location

	// LiveSource is the device input cued for live items; LiveProducer is
	// the name the device reports while it is on air.
	LiveSource   string
	LiveProducer string

	// SkipWhen marks items the resolver treats as SKIP.
	SkipWhen *predicate.Predicate
	// StallGrace is how long a finished clip may sit without progress before
	// the cued item is taken implicitly.
	StallGrace time.Duration
	// CueRetry is the backoff after a failed automatic cue.
	CueRetry time.Duration
	// CueTimeout bounds the wait for an in-flight cue.
	CueTimeout     time.Duration
	RecoverOnStart bool
	Plugins        []string

	Poll device.PollerConfig
}

// Deps are the collaborators of a Service.
type Deps struct {
	Device   device.Controller
	Store    rundown.Store
	Notifier *notify.Notifier
	Now      func() time.Time
	Logger   *zerolog.Logger
}

// CueOptions are the caller-facing cue flags.
type CueOptions struct {
	// Play loads straight to air.
	Play bool
	Loop bool
	// NoAuto keeps the device from taking the clip on its own when the
	// foreground ends. MANUAL items never auto-take.
	NoAuto bool
}

// Service is the authoritative owner of one channel's on-air state.
type Service struct {
	cfg      Config
	dev      device.Controller
	store    rundown.Store
	notifier *notify.Notifier
	now      func() time.Time
	logger   zerolog.Logger
	tracer   trace.Tracer
	res      *resolver
	poller   *device.Poller
	plugins  map[string]Plugin

	// cmdMu serialises user commands; mu guards everything below.
	cmdMu sync.Mutex
	mu    sync.Mutex

	current *slot
	cued    *slot
	cueing  bool
	cueDone chan struct{}

	position float64
	duration float64
	paused   bool
	asRunID  int64

	lastFG       string
	lastBG       string
	lastPos      float64
	lastProgress time.Time

	nextCueAttempt time.Time
	// halted is the current item after which resolution was exhausted.
	halted int64

	autoCued  map[int64]bool
	connected bool
	lastSent  Stat
}

// New builds a channel service. It does not touch the device.
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Device == nil {
		return nil, errors.New("playout: device controller is required")
	}
	if deps.Store == nil {
		return nil, errors.New("playout: rundown store is required")
	}
	if cfg.StallGrace <= 0 {
		cfg.StallGrace = defaultStallGrace
	}
	if cfg.CueRetry <= 0 {
		cfg.CueRetry = defaultCueRetry
	}
	if cfg.CueTimeout <= 0 {
		cfg.CueTimeout = defaultCueTimeout
	}
	if cfg.LiveProducer == "" {
		cfg.LiveProducer = defaultLiveProducer
	}
	if cfg.LiveSource == "" {
		cfg.LiveSource = defaultLiveSource
	}
	if cfg.FPS <= 0 {
		cfg.FPS = device.DefaultFPS
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := nlog.WithChannel("playout", cfg.ChannelID)
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	plugins, err := buildPlugins(cfg.Plugins)
	if err != nil {
		return nil, err
	}

	n := deps.Notifier
	if n == nil {
		n = notify.NewNotifier(nil, notify.NotifierConfig{ChannelID: cfg.ChannelID, Now: deps.Now})
	}

	s := &Service{
		cfg:      cfg,
		dev:      deps.Device,
		store:    deps.Store,
		notifier: n,
		now:      deps.Now,
		logger:   logger,
		tracer:   telemetry.Tracer(telemetry.TracerPlayout),
		plugins:  plugins,
		autoCued: make(map[int64]bool),
	}
	s.res = &resolver{store: deps.Store, channel: cfg.ChannelID, skipWhen: cfg.SkipWhen, logger: logger}

	pollCfg := cfg.Poll
	pollCfg.ChannelID = cfg.ChannelID
	s.poller = device.NewPoller(deps.Device, s, pollCfg)
	return s, nil
}

// ID is the channel id.
func (s *Service) ID() int { return s.cfg.ChannelID }

// Config returns the configuration the service was built with.
func (s *Service) Config() Config { return s.cfg }

// Poller exposes the polling loop, mainly so tests can tick it.
func (s *Service) Poller() *device.Poller { return s.poller }

// Run connects the device, recovers if configured and polls until ctx is
// cancelled. A failed connect is not fatal; the poller keeps reconnecting.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().Str("name", s.cfg.Name).Msg("channel starting")
	if err := s.dev.Connect(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("device connect failed, will retry")
	}
	if s.cfg.RecoverOnStart {
		r := s.command(ctx, "recover", func(ctx context.Context) Result { return s.recoverChannel(ctx, false) })
		if !r.OK() {
			s.logger.Warn().Str("result", r.String()).Msg("startup recovery failed")
		}
	}
	err := s.poller.Run(ctx)
	s.logger.Info().Msg("channel stopped")
	return err
}

// Close releases the device connection. Call it after Run returned.
func (s *Service) Close() error {
	return s.dev.Close()
}

// Stat returns a snapshot of the engine state.
func (s *Service) Stat() Stat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statLocked(s.now())
}

func (s *Service) statLocked(now time.Time) Stat {
	st := Stat{
		ChannelID:    s.cfg.ChannelID,
		Cueing:       s.cueing,
		Position:     s.position,
		Duration:     s.duration,
		Paused:       s.paused,
		AsRunID:      s.asRunID,
		BroadcastDay: BroadcastDay(now, s.cfg.DayStart, s.cfg.Location).Format("2006-01-02"),
		Connected:    s.connected,
		BadRequests:  s.poller.BadRequests(),
		Time:         now,
	}
	if c := s.current; c != nil {
		st.CurrentItem = c.item.ID
		st.CurrentEvent = c.event.ID
		st.CurrentFname = c.fname
		st.CurrentLive = c.live
		st.CurrentTitle = c.item.Title
		if c.asset != nil {
			st.CurrentAsset = c.asset.ID
			if st.CurrentTitle == "" {
				st.CurrentTitle = c.asset.Title
			}
		}
	}
	if c := s.cued; c != nil {
		st.CuedItem = c.item.ID
		st.CuedFname = c.fname
		st.CuedLive = c.live
	}
	return st
}

// command serialises a user command and records its outcome.
func (s *Service) command(ctx context.Context, name string, fn func(ctx context.Context) Result) Result {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "playout."+name,
		trace.WithAttributes(telemetry.PlayoutAttributes(s.cfg.ChannelID, name, 0, 0)...))
	defer span.End()

	r := fn(ctx)
	metrics.IncCommand(s.cfg.ChannelID, name, outcome(r))
	if r.OK() {
		s.logger.Info().Str(nlog.FieldCommand, name).Msg(r.Message)
	} else {
		span.SetStatus(codes.Error, r.Message)
		s.logger.Warn().Str(nlog.FieldCommand, name).Int(nlog.FieldStatusCode, r.Code).Msg(r.Message)
	}
	return r
}

// newSlot derives the device addressing for a resolved item.
func (s *Service) newSlot(res resolved, req CueOptions) *slot {
	it := res.item
	sl := &slot{item: it, asset: res.asset, event: res.event}
	opts := device.CueOptions{
		Play:    req.Play,
		Loop:    it.Loop || req.Loop,
		Auto:    !req.NoAuto && it.RunMode != rundown.RunManual,
		MarkIn:  it.MarkIn,
		MarkOut: it.MarkOut,
		FPS:     s.cfg.FPS,
	}
	if it.Role == rundown.RoleLive {
		sl.live = true
		opts.Live = true
		opts.MarkIn, opts.MarkOut = 0, 0
		sl.source = s.cfg.LiveSource
		sl.fname = normalizeName(s.cfg.LiveProducer)
	} else if res.asset != nil {
		sl.source = res.asset.ClipName()
		sl.fname = normalizeName(sl.source)
		opts.Duration = res.asset.Duration
	}
	sl.opts = opts
	return sl
}

// claimCue waits for an in-flight cue to finish and claims the cue guard.
func (s *Service) claimCue(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.CueTimeout)
	defer timer.Stop()
	for {
		s.mu.Lock()
		if !s.cueing {
			s.cueing = true
			s.cueDone = make(chan struct{})
			s.mu.Unlock()
			return nil
		}
		done := s.cueDone
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w: waited %s", ErrCueInFlight, s.cfg.CueTimeout)
		}
	}
}

// tryClaimCueLocked claims the cue guard if it is free. mu must be held.
func (s *Service) tryClaimCueLocked() bool {
	if s.cueing {
		return false
	}
	s.cueing = true
	s.cueDone = make(chan struct{})
	return true
}

// releaseCueLocked frees the cue guard. mu must be held.
func (s *Service) releaseCueLocked() {
	if !s.cueing {
		return
	}
	s.cueing = false
	close(s.cueDone)
	s.cueDone = nil
}

func (s *Service) releaseCue() {
	s.mu.Lock()
	s.releaseCueLocked()
	s.mu.Unlock()
}

// loadClaimed sends a resolved item to the device. The caller holds the
// cue guard; loadClaimed releases it. The returned snapshot is non-nil when
// the item went straight to air.
func (s *Service) loadClaimed(ctx context.Context, res resolved, req CueOptions) (Result, *Stat) {
	sl := s.newSlot(res, req)

	s.mu.Lock()
	if sl.live && s.current != nil && s.current.live {
		s.releaseCueLocked()
		s.mu.Unlock()
		return errorResult(fmt.Errorf("%w: item %d", ErrAlreadyLive, sl.item.ID)), nil
	}
	s.mu.Unlock()

	resp := s.dev.Cue(ctx, sl.source, sl.opts)
	r := deviceResult(resp)

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.releaseCueLocked()

	if !r.OK() {
		s.cued = nil
		return r, nil
	}
	sl.opts.Play = false
	sl.at = now
	s.cued = sl
	s.lastBG = ""
	if req.Play {
		snap := s.advanceLocked(ctx, now, "play")
		return okResult(fmt.Sprintf("playing item %d", sl.item.ID), snap), &snap
	}
	return okResult(fmt.Sprintf("cued item %d", sl.item.ID), s.statLocked(now)), nil
}

// advanceLocked promotes the cued slot to air. mu must be held.
func (s *Service) advanceLocked(ctx context.Context, now time.Time, kind string) Stat {
	prev, next := s.current, s.cued
	s.current, s.cued = next, nil

	switch {
	case next.live && (prev == nil || !prev.live):
		s.logger.Info().Int64(nlog.FieldItemID, next.item.ID).Msg("entering live")
	case !next.live && prev != nil && prev.live:
		s.logger.Info().Int64(nlog.FieldItemID, next.item.ID).Msg("leaving live")
	}

	s.position = 0
	s.duration = next.playable()
	s.paused = false
	s.lastFG = next.fname
	s.lastPos = 0
	s.lastProgress = now
	s.nextCueAttempt = time.Time{}
	s.halted = 0

	s.logAsRunLocked(ctx, now, next)
	metrics.IncAdvance(s.cfg.ChannelID, kind)
	s.logger.Info().
		Str(nlog.FieldEvent, "advance").
		Str("kind", kind).
		Int64(nlog.FieldItemID, next.item.ID).
		Int64(nlog.FieldEventID, next.event.ID).
		Str(nlog.FieldFilename, next.fname).
		Msg("on air")

	st := s.statLocked(now)
	s.lastSent = st
	return st
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/nebula/internal/api"
	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/health"
	"github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/playout"
)

// ErrUnknownChannel is returned for a channel id that is not running.
var ErrUnknownChannel = errors.New("unknown channel")

// Supervisor runs one playout service per configured channel and applies
// configuration changes by stopping, starting or restarting channels.
type Supervisor struct {
	factory ChannelFactory
	health  *health.Manager
	logger  zerolog.Logger

	mu      sync.Mutex
	applied config.AppConfig
	running map[int]*runningChannel
}

type runningChannel struct {
	cfg    config.ChannelConfig
	svc    *playout.Service
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a supervisor. hm may be nil.
func NewSupervisor(factory ChannelFactory, hm *health.Manager) *Supervisor {
	return &Supervisor{
		factory: factory,
		health:  hm,
		logger:  log.WithComponent("supervisor"),
		running: make(map[int]*runningChannel),
	}
}

// Run applies initial, then every config received on updates, until ctx
// ends. All channels are stopped before it returns.
func (s *Supervisor) Run(ctx context.Context, initial config.AppConfig, updates <-chan config.AppConfig) error {
	if err := s.Apply(ctx, initial); err != nil {
		s.StopAll()
		return err
	}
	for {
		select {
		case <-ctx.Done():
			s.StopAll()
			return nil
		case cfg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if err := s.Apply(ctx, cfg); err != nil {
				s.logger.Error().Err(err).Str(log.FieldEvent, "supervisor.apply_failed").Msg("failed to apply configuration")
			}
		}
	}
}

// Apply brings the running channels in line with cfg. Changed channels are
// restarted; their startup recovery picks up what was on air. Channels
// that fail to build are reported together and left stopped.
func (s *Supervisor) Apply(ctx context.Context, cfg config.AppConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	diff := config.DiffChannels(s.applied, cfg)
	s.applied = cfg
	if diff.Empty() {
		return nil
	}
	s.logger.Info().
		Ints("added", diff.Added).
		Ints("removed", diff.Removed).
		Ints("changed", diff.Changed).
		Msg("applying channel changes")

	for _, id := range diff.Removed {
		s.stopLocked(id)
	}
	for _, id := range diff.Changed {
		s.stopLocked(id)
	}

	var errs []error
	failed := make(map[int]bool)
	start := append(append([]int(nil), diff.Changed...), diff.Added...)
	sort.Ints(start)
	for _, id := range start {
		ch, ok := cfg.Channel(id)
		if !ok {
			continue
		}
		if err := s.startLocked(ctx, ch); err != nil {
			errs = append(errs, err)
			failed[id] = true
		}
	}
	if len(failed) > 0 {
		// Forget failed channels so the next reload retries them.
		kept := make([]config.ChannelConfig, 0, len(cfg.Channels))
		for _, ch := range cfg.Channels {
			if !failed[ch.ID] {
				kept = append(kept, ch)
			}
		}
		s.applied.Channels = kept
	}
	return errors.Join(errs...)
}

func (s *Supervisor) startLocked(ctx context.Context, ch config.ChannelConfig) error {
	rt, err := s.factory(ch)
	if err != nil {
		s.logger.Error().Err(err).Int(log.FieldChannelID, ch.ID).Msg("channel build failed")
		return fmt.Errorf("start channel %d: %w", ch.ID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	rc := &runningChannel{cfg: ch, svc: rt.Service, cancel: cancel, done: make(chan struct{})}
	s.running[ch.ID] = rc
	if s.health != nil && rt.Checker != nil {
		s.health.RegisterChecker(rt.Checker)
	}

	go func() {
		defer close(rc.done)
		if err := rt.Service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Int(log.FieldChannelID, ch.ID).Msg("channel exited")
		}
		if err := rt.Service.Close(); err != nil {
			s.logger.Warn().Err(err).Int(log.FieldChannelID, ch.ID).Msg("device close failed")
		}
	}()
	s.logger.Info().Int(log.FieldChannelID, ch.ID).Str("name", ch.Name).Str(log.FieldDevice, ch.Device.Kind).Msg("channel started")
	return nil
}

func (s *Supervisor) stopLocked(id int) {
	rc, ok := s.running[id]
	if !ok {
		return
	}
	delete(s.running, id)
	rc.cancel()
	<-rc.done
	if s.health != nil {
		s.health.Unregister(health.ChannelCheckName(id))
	}
	s.logger.Info().Int(log.FieldChannelID, id).Msg("channel stopped")
}

// StopAll stops every channel and waits for them.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.idsLocked() {
		s.stopLocked(id)
	}
	s.applied = config.AppConfig{}
}

// Channels returns the ids of the running channels in ascending order.
func (s *Supervisor) Channels() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsLocked()
}

func (s *Supervisor) idsLocked() []int {
	ids := make([]int, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Channel returns the service running channel id.
func (s *Supervisor) Channel(id int) (*playout.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.running[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return rc.svc, nil
}

// Lookup implements api.Registry.
func (s *Supervisor) Lookup(id int) (api.ChannelView, bool) {
	svc, err := s.Channel(id)
	if err != nil {
		return nil, false
	}
	return svc, true
}

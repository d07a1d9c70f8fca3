// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"context"
	"errors"
	"time"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
	"github.com/ManuGH/nebula/internal/rundown"
)

// autocue applies the run mode of the latest elapsed event that is not on
// air yet. Each event is acted on at most once.
func (s *Service) autocue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	cur := s.current
	busy := s.cueing
	s.mu.Unlock()
	if cur == nil || busy {
		return
	}

	ev, err := s.store.EventAt(ctx, s.cfg.ChannelID, now)
	if err != nil {
		if !errors.Is(err, rundown.ErrNotFound) {
			s.logger.Debug().Err(err).Msg("auto cue: event lookup failed")
		}
		return
	}
	if ev.ID == cur.event.ID || !ev.Start.After(cur.event.Start) {
		return
	}

	s.mu.Lock()
	done := s.autoCued[ev.ID]
	s.mu.Unlock()
	if done {
		return
	}

	switch ev.RunMode {
	case rundown.RunHard:
		s.autocueEvent(ctx, ev, CueOptions{Play: true})
	case rundown.RunSoft:
		if !s.atLeadOut(ctx, cur.item) {
			return
		}
		s.autocueEvent(ctx, ev, CueOptions{})
	default:
		// AUTO continues when the bin runs out; MANUAL waits for an operator.
		s.markAutoCued(ev.ID)
	}
}

func (s *Service) markAutoCued(id int64) {
	s.mu.Lock()
	s.autoCued[id] = true
	s.mu.Unlock()
}

func (s *Service) autocueEvent(ctx context.Context, ev rundown.Event, opts CueOptions) {
	s.mu.Lock()
	if !s.tryClaimCueLocked() {
		s.mu.Unlock()
		return
	}
	s.autoCued[ev.ID] = true
	s.mu.Unlock()

	res, err := s.res.first(ctx, ev)
	if err != nil {
		s.releaseCue()
		s.logger.Error().Err(err).Int64(nlog.FieldEventID, ev.ID).Msg("auto cue: event has nothing playable")
		return
	}
	r, snap := s.loadClaimed(ctx, res, opts)
	if snap != nil {
		s.notifier.Advance(ctx, *snap)
	}
	metrics.IncAutoCue(s.cfg.ChannelID, ev.RunMode.String())
	s.logger.Info().
		Int64(nlog.FieldEventID, ev.ID).
		Str(nlog.FieldRunMode, ev.RunMode.String()).
		Int64(nlog.FieldItemID, res.item.ID).
		Str("result", r.String()).
		Msg("auto cue")
}

// atLeadOut reports whether the bin of it has reached its lead-out: it is
// the lead-out itself or the next selectable item is.
func (s *Service) atLeadOut(ctx context.Context, it rundown.Item) bool {
	if it.Role == rundown.RoleLeadOut {
		return true
	}
	bin, err := s.store.GetBin(ctx, it.BinID)
	if err != nil {
		return false
	}
	for i := after(bin, it); i < len(bin.Items); i++ {
		if s.res.skipped(ctx, bin.Items[i]) {
			continue
		}
		return bin.Items[i].Role == rundown.RoleLeadOut
	}
	return false
}

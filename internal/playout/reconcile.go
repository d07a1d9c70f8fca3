// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/nebula/internal/device"
	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
)

var (
	_ device.Observer      = (*Service)(nil)
	_ device.ErrorObserver = (*Service)(nil)
)

// OnStatus reconciles the engine with what the device reports. It runs on
// the poller goroutine once per successful read.
func (s *Service) OnStatus(ctx context.Context, st device.Status) {
	now := s.now()
	fg := normalizeName(st.CurrentFilename)
	bg := normalizeName(st.CuedFilename)

	var advanced *Stat

	s.mu.Lock()
	s.connected = true

	// An advance is the foreground becoming the cued clip while the
	// background no longer holds it.
	if c := s.cued; c != nil && sameClip(fg, c.fname) && !sameClip(bg, c.fname) &&
		(fg != s.lastFG || sameClip(s.lastBG, c.fname)) {
		snap := s.advanceLocked(ctx, now, "auto")
		advanced = &snap
	}

	if st.Position != s.lastPos {
		s.lastPos = st.Position
		s.lastProgress = now
	}
	if c := s.current; c != nil && sameClip(fg, c.fname) {
		s.position, s.duration, s.paused = st.Position, st.Duration, st.Paused
	}

	if advanced == nil && s.stalledLocked(fg, st, now) {
		if r := deviceResult(s.dev.Take(ctx)); r.OK() {
			s.logger.Warn().Dur("grace", s.cfg.StallGrace).Msg("clip stalled at its end, taking cued item")
			snap := s.advanceLocked(ctx, now, "stall_take")
			advanced = &snap
		} else {
			s.logger.Error().Str("result", r.String()).Msg("stall take failed")
			s.lastProgress = now
		}
	}

	if c := s.cued; c != nil && advanced == nil && !s.cueing && !sameClip(bg, c.fname) && now.Sub(c.at) > mismatchGrace {
		s.logger.Warn().
			Int64(nlog.FieldItemID, c.item.ID).
			Str(nlog.FieldFilename, c.fname).
			Str("background", bg).
			Msg("cued item missing from background")
		s.cued = nil
	}

	s.lastFG, s.lastBG = fg, bg
	s.mu.Unlock()

	if advanced != nil {
		s.notifier.Advance(ctx, *advanced)
	}
	s.autocue(ctx, now)
	s.ensureCued(ctx, now)
	s.publishStatus(ctx, now)
	metrics.SetOnAir(s.cfg.ChannelID, st.Position, st.Duration)
}

// OnStatusError degrades the snapshot while the device is not answering.
func (s *Service) OnStatusError(ctx context.Context, _ error, _ int) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.publishStatus(ctx, s.now())
}

// stalledLocked reports a clip that reached its end but was not followed
// by its AUTO background, which happens when the device misses the
// transition.
func (s *Service) stalledLocked(fg string, st device.Status, now time.Time) bool {
	c, cur := s.cued, s.current
	if c == nil || cur == nil || s.cueing {
		return false
	}
	if !c.opts.Auto || c.live || cur.live || cur.opts.Loop || st.Paused {
		return false
	}
	if !sameClip(fg, cur.fname) || st.Duration <= 0 || st.Position < st.Duration-stallWindow {
		return false
	}
	return now.Sub(s.lastProgress) >= s.cfg.StallGrace
}

// ensureCued keeps the next item in the background while something is on
// air. Failures back off; an exhausted resolution halts until the next
// advance.
func (s *Service) ensureCued(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if s.current == nil || s.cued != nil || now.Before(s.nextCueAttempt) || s.halted == s.current.item.ID {
		s.mu.Unlock()
		return
	}
	if !s.tryClaimCueLocked() {
		s.mu.Unlock()
		return
	}
	from := s.current.item
	s.mu.Unlock()

	res, err := s.res.next(ctx, from, forward, walkOptions{})
	if err != nil {
		s.mu.Lock()
		if errors.Is(err, ErrResolutionExhausted) {
			s.halted = from.ID
			metrics.IncResolverExhausted(s.cfg.ChannelID)
			s.logger.Error().Err(err).Int64(nlog.FieldItemID, from.ID).Msg("no playable next item, channel stays idle")
		} else {
			s.nextCueAttempt = now.Add(s.cfg.CueRetry)
			s.logger.Warn().Err(err).Int64(nlog.FieldItemID, from.ID).Msg("resolving next item failed")
		}
		s.releaseCueLocked()
		s.mu.Unlock()
		return
	}

	r, snap := s.loadClaimed(ctx, res, CueOptions{})
	if snap != nil {
		s.notifier.Advance(ctx, *snap)
	}
	if !r.OK() {
		s.mu.Lock()
		s.nextCueAttempt = now.Add(s.cfg.CueRetry)
		s.mu.Unlock()
		s.logger.Warn().Int64(nlog.FieldItemID, res.item.ID).Str("result", r.String()).Msg("auto cue failed")
		return
	}
	s.logger.Debug().Int64(nlog.FieldItemID, res.item.ID).Msg("next item cued")
}

// publishStatus offers a changed snapshot to the throttled feed and
// otherwise lets a parked one through.
func (s *Service) publishStatus(ctx context.Context, now time.Time) {
	s.mu.Lock()
	snap := s.statLocked(now)
	changed := !sameState(snap, s.lastSent)
	if changed {
		s.lastSent = snap
	}
	s.mu.Unlock()

	if changed {
		s.notifier.Status(ctx, snap)
		return
	}
	s.notifier.Flush(ctx)
}

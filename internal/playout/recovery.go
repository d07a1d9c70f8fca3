// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
	"github.com/ManuGH/nebula/internal/rundown"
	"github.com/ManuGH/nebula/internal/telemetry"
)

// recoverChannel rebuilds the engine state from the newest as-run entry. If that
// item should have finished by now the next one is played at once,
// otherwise it is only cued behind the presumed on-air item. Without any
// entry a startup recovery leaves the channel idle, while an explicit one
// reports an inconsistency.
func (s *Service) recoverChannel(ctx context.Context, explicit bool) Result {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, telemetry.SpanRecovery,
		trace.WithAttributes(telemetry.PlayoutAttributes(s.cfg.ChannelID, "recover", 0, 0)...))
	defer span.End()

	result, outcomeName, asRunID := s.recoverState(ctx, start, explicit)

	elapsed := s.now().Sub(start).Seconds()
	span.SetAttributes(telemetry.RecoveryAttributes(outcomeName, asRunID, elapsed)...)
	if !result.OK() {
		span.SetStatus(codes.Error, result.Message)
	}
	metrics.IncRecovery(s.cfg.ChannelID, outcomeName)
	s.logger.Info().
		Str("outcome", outcomeName).
		Int64(nlog.FieldAsRunID, asRunID).
		Float64("elapsed_s", elapsed).
		Msg("channel recovery")
	return result
}

func (s *Service) recoverState(ctx context.Context, now time.Time, explicit bool) (Result, string, int64) {
	entry, err := s.store.LastAsRun(ctx, s.cfg.ChannelID)
	if err != nil {
		if !errors.Is(err, rundown.ErrNotFound) {
			return errorResult(fmt.Errorf("reading as-run log: %w", err)), "failed", 0
		}
		if explicit {
			return errorResult(fmt.Errorf("%w: channel %d has no as-run entry", ErrRecoveryInconsistent, s.cfg.ChannelID)), "inconsistent", 0
		}
		return okResult("nothing to recover", nil), "idle", 0
	}

	it, err := s.store.GetItem(ctx, entry.ItemID)
	if err != nil {
		if errors.Is(err, rundown.ErrNotFound) {
			return errorResult(fmt.Errorf("%w: item %d of as-run entry %d is gone", ErrRecoveryInconsistent, entry.ItemID, entry.ID)), "inconsistent", entry.ID
		}
		return errorResult(s.res.storeErr(err)), "failed", entry.ID
	}

	cur := resolved{item: it}
	if ev, err := s.store.EventForBin(ctx, it.BinID); err == nil {
		cur.event = ev
	}
	if it.AssetID != 0 {
		if a, err := s.store.GetAsset(ctx, it.AssetID); err == nil {
			cur.asset = &a
		}
	}
	sl := s.newSlot(cur, CueOptions{})
	dur := sl.playable()
	// Zero-length items (live sources, unknown durations) count as
	// finished as soon as they started.
	finished := !entry.Start.Add(seconds(dur)).After(now)

	if err := s.claimCue(ctx); err != nil {
		return errorResult(err), "failed", entry.ID
	}

	s.mu.Lock()
	s.current, s.cued = sl, nil
	s.position, s.duration, s.paused = 0, dur, false
	s.lastFG, s.lastBG = "", ""
	s.halted = 0
	s.asRunID = 0
	if entry.Open() {
		if finished {
			stop := entry.Start.Add(seconds(dur))
			err := s.store.CloseAsRun(ctx, entry.ID, stop)
			metrics.IncAsRunWrite(s.cfg.ChannelID, "close", err)
			if err != nil {
				s.logger.Error().Err(err).Int64(nlog.FieldAsRunID, entry.ID).Msg("closing recovered as-run entry failed")
			}
		} else {
			s.asRunID = entry.ID
		}
	}
	s.mu.Unlock()

	next, err := s.res.next(ctx, it, forward, walkOptions{})
	if err != nil {
		s.mu.Lock()
		if errors.Is(err, ErrResolutionExhausted) {
			s.halted = it.ID
			metrics.IncResolverExhausted(s.cfg.ChannelID)
		}
		s.releaseCueLocked()
		s.mu.Unlock()
		s.logger.Error().Err(err).Int64(nlog.FieldItemID, it.ID).Msg("recovery could not resolve the next item")
		return errorResult(err), "failed", entry.ID
	}

	r, snap := s.loadClaimed(ctx, next, CueOptions{Play: finished})
	if snap != nil {
		s.notifier.Advance(ctx, *snap)
	}
	if !r.OK() {
		return r, "failed", entry.ID
	}
	if finished {
		return r, "played", entry.ID
	}
	return r, "cued", entry.ID
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

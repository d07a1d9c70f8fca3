// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/nebula/internal/rundown"
)

// Cue loads an item into the background, or straight to air with Play.
// Cueing again before a take replaces the outstanding cue.
func (s *Service) Cue(ctx context.Context, itemID int64, opts CueOptions) Result {
	return s.command(ctx, "cue", func(ctx context.Context) Result {
		it, err := s.store.GetItem(ctx, itemID)
		if err != nil {
			return errorResult(s.res.storeErr(err))
		}
		res, err := s.res.load(ctx, it)
		if err != nil {
			return errorResult(err)
		}
		return s.cueResolved(ctx, res, opts)
	})
}

func (s *Service) cueResolved(ctx context.Context, res resolved, opts CueOptions) Result {
	if err := s.claimCue(ctx); err != nil {
		return errorResult(err)
	}
	r, snap := s.loadClaimed(ctx, res, opts)
	if snap != nil {
		s.notifier.Advance(ctx, *snap)
	}
	return r
}

// CueForward cues the item after the cued one, or after the on-air item
// when nothing is cued.
func (s *Service) CueForward(ctx context.Context) Result {
	return s.command(ctx, "cue_forward", func(ctx context.Context) Result {
		return s.cueStep(ctx, forward)
	})
}

// CueBackward cues the item before the cued one.
func (s *Service) CueBackward(ctx context.Context) Result {
	return s.command(ctx, "cue_backward", func(ctx context.Context) Result {
		return s.cueStep(ctx, backward)
	})
}

func (s *Service) cueStep(ctx context.Context, dir direction) Result {
	if err := s.claimCue(ctx); err != nil {
		return errorResult(err)
	}
	s.mu.Lock()
	base := s.cued
	if base == nil {
		base = s.current
	}
	s.mu.Unlock()
	if base == nil {
		s.releaseCue()
		return errorResult(fmt.Errorf("%w: no item to step from", ErrNothingCued))
	}

	res, err := s.res.next(ctx, base.item, dir, walkOptions{manual: true})
	if err != nil {
		s.releaseCue()
		if errors.Is(err, ErrResolutionExhausted) {
			s.logger.Error().Err(err).Msg("cue step found nothing playable")
		}
		return errorResult(err)
	}
	r, _ := s.loadClaimed(ctx, res, CueOptions{})
	return r
}

// Take promotes the cued item to air.
func (s *Service) Take(ctx context.Context) Result {
	return s.command(ctx, "take", func(ctx context.Context) Result {
		s.mu.Lock()
		if s.cued == nil || s.cueing {
			s.mu.Unlock()
			return errorResult(ErrNothingCued)
		}
		r := deviceResult(s.dev.Take(ctx))
		if !r.OK() {
			s.mu.Unlock()
			return r
		}
		snap := s.advanceLocked(ctx, s.now(), "take")
		s.mu.Unlock()

		s.notifier.Advance(ctx, snap)
		return okResult(fmt.Sprintf("took item %d", snap.CurrentItem), snap)
	})
}

// Freeze toggles pause on the on-air clip.
func (s *Service) Freeze(ctx context.Context) Result {
	return s.command(ctx, "freeze", func(ctx context.Context) Result {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == nil {
			return errorResult(fmt.Errorf("%w: nothing on air", ErrNothingCued))
		}
		if s.current.live || s.current.item.Role == rundown.RolePlaceholder {
			return errorResult(fmt.Errorf("%w: cannot freeze %s", ErrLiveItem, roleName(s.current)))
		}
		pause := !s.paused
		r := deviceResult(s.dev.Freeze(ctx, pause))
		if !r.OK() {
			return r
		}
		s.paused = pause
		if pause {
			return okResult("paused", s.statLocked(s.now()))
		}
		return okResult("resumed", s.statLocked(s.now()))
	})
}

// Retake replays the on-air item from its mark-in.
func (s *Service) Retake(ctx context.Context) Result {
	return s.command(ctx, "retake", func(ctx context.Context) Result {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == nil {
			return errorResult(fmt.Errorf("%w: nothing on air", ErrNothingCued))
		}
		if s.current.live {
			return errorResult(fmt.Errorf("%w: cannot retake a live source", ErrLiveItem))
		}
		r := deviceResult(s.dev.Retake(ctx, s.current.source, s.current.opts))
		if !r.OK() {
			return r
		}
		now := s.now()
		s.position, s.lastPos, s.lastProgress = 0, 0, now
		s.paused = false
		return okResult(fmt.Sprintf("retook item %d", s.current.item.ID), s.statLocked(now))
	})
}

// Abort loads the cued clip into the foreground, paused on its first
// frame, without putting it on air.
func (s *Service) Abort(ctx context.Context) Result {
	return s.command(ctx, "abort", func(ctx context.Context) Result {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cued == nil || s.cueing {
			return errorResult(ErrNothingCued)
		}
		r := deviceResult(s.dev.Abort(ctx, s.cued.source, s.cued.opts))
		if !r.OK() {
			return r
		}
		s.paused = true
		s.position = 0
		return okResult(fmt.Sprintf("aborted to item %d", s.cued.item.ID), s.statLocked(s.now()))
	})
}

// Clear empties the layer and closes the running as-run entry.
func (s *Service) Clear(ctx context.Context) Result {
	return s.command(ctx, "clear", func(ctx context.Context) Result {
		if err := s.claimCue(ctx); err != nil {
			return errorResult(err)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		defer s.releaseCueLocked()

		r := deviceResult(s.dev.Clear(ctx))
		if !r.OK() {
			return r
		}
		now := s.now()
		s.logAsRunLocked(ctx, now, nil)
		s.current, s.cued = nil, nil
		s.position, s.duration, s.paused = 0, 0, false
		s.lastFG, s.lastBG = "", ""
		return okResult("cleared", s.statLocked(now))
	})
}

// ChannelRecover rebuilds the on-air state from the as-run log.
func (s *Service) ChannelRecover(ctx context.Context) Result {
	return s.command(ctx, "recover", func(ctx context.Context) Result {
		return s.recoverChannel(ctx, true)
	})
}

func roleName(sl *slot) string {
	if sl.live {
		return "a live source"
	}
	return "a " + string(sl.item.Role) + " item"
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/predicate"
	"github.com/ManuGH/nebula/internal/rundown"
)

// maxResolveAttempts bounds how many uncueable candidates are stepped over.
const maxResolveAttempts = 5

// resolved is a cueable item with its context.
type resolved struct {
	item  rundown.Item
	asset *rundown.Asset
	event rundown.Event
}

// resolver computes what plays next. It only reads the store.
type resolver struct {
	store    rundown.Store
	channel  int
	skipWhen *predicate.Predicate
	logger   zerolog.Logger
}

// direction of a walk through the rundown.
type direction int

const (
	forward direction = iota
	backward
)

// walkOptions tune a forward walk.
type walkOptions struct {
	// manual walks (cue-forward) select lead_out items instead of
	// redirecting to the lead-in.
	manual bool
}

// next resolves the playable item after from. Uncueable candidates are
// stepped over up to maxResolveAttempts times.
func (r *resolver) next(ctx context.Context, from rundown.Item, dir direction, opts walkOptions) (resolved, error) {
	candidate := from
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		var (
			it  rundown.Item
			err error
		)
		if dir == forward {
			it, err = r.stepForward(ctx, candidate, opts)
		} else {
			it, err = r.stepBackward(ctx, candidate)
		}
		if err != nil {
			return resolved{}, err
		}
		res, err := r.load(ctx, it)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrNotCueable) {
			return resolved{}, err
		}
		r.logger.Debug().Err(err).Int64(nlog.FieldItemID, it.ID).Int(nlog.FieldAttempt, attempt+1).Msg("skipping uncueable item")
		candidate = it
	}
	return resolved{}, fmt.Errorf("%w: no playable item after %d within %d attempts", ErrResolutionExhausted, from.ID, maxResolveAttempts)
}

// first resolves the first playable item of an event's bin.
func (r *resolver) first(ctx context.Context, ev rundown.Event) (resolved, error) {
	bin, err := r.store.GetBin(ctx, ev.BinID)
	if err != nil {
		return resolved{}, r.storeErr(err)
	}
	tried := 0
	for _, it := range bin.Items {
		if r.skipped(ctx, it) {
			continue
		}
		if tried == maxResolveAttempts {
			break
		}
		tried++
		res, err := r.load(ctx, it)
		if err == nil {
			res.event = ev
			return res, nil
		}
		if !errors.Is(err, ErrNotCueable) {
			return resolved{}, err
		}
	}
	return resolved{}, fmt.Errorf("%w: event %d has no playable item", ErrResolutionExhausted, ev.ID)
}

// skipped reports items the resolver must never select. The skip
// predicate sees the item together with its asset, so asset fields such
// as asset.path or asset.meta.* can mark an item as skipped.
func (r *resolver) skipped(ctx context.Context, it rundown.Item) bool {
	if it.RunMode == rundown.RunSkip {
		return true
	}
	if r.skipWhen == nil {
		return false
	}
	var a *rundown.Asset
	if it.AssetID != 0 {
		asset, err := r.store.GetAsset(ctx, it.AssetID)
		switch {
		case err == nil:
			a = &asset
		case !errors.Is(err, rundown.ErrNotFound):
			r.logger.Warn().Err(err).Int64(nlog.FieldItemID, it.ID).Msg("asset lookup for skip predicate failed")
		}
	}
	match, err := r.skipWhen.Eval(itemFields(it, a))
	if err != nil {
		r.logger.Warn().Err(err).Int64(nlog.FieldItemID, it.ID).Str("predicate", r.skipWhen.String()).Msg("skip predicate failed")
		return false
	}
	return match
}

func (r *resolver) firstNonSkip(ctx context.Context, bin rundown.Bin) (rundown.Item, bool) {
	for _, it := range bin.Items {
		if !r.skipped(ctx, it) {
			return it, true
		}
	}
	return rundown.Item{}, false
}

func (r *resolver) lastNonSkip(ctx context.Context, bin rundown.Bin) (rundown.Item, bool) {
	for i := len(bin.Items) - 1; i >= 0; i-- {
		if !r.skipped(ctx, bin.Items[i]) {
			return bin.Items[i], true
		}
	}
	return rundown.Item{}, false
}

// after returns the index of the first item ordered after from. It works
// even when from was moved out of the bin or deleted meanwhile.
func after(bin rundown.Bin, from rundown.Item) int {
	if i := bin.Index(from.ID); i >= 0 {
		return i + 1
	}
	for i, it := range bin.Items {
		if it.Position > from.Position || (it.Position == from.Position && it.ID > from.ID) {
			return i
		}
	}
	return len(bin.Items)
}

// stepForward finds the next selectable item without checking cueability.
func (r *resolver) stepForward(ctx context.Context, from rundown.Item, opts walkOptions) (rundown.Item, error) {
	bin, err := r.store.GetBin(ctx, from.BinID)
	if err != nil {
		return rundown.Item{}, r.storeErr(err)
	}

	for i := after(bin, from); i < len(bin.Items); i++ {
		it := bin.Items[i]
		if r.skipped(ctx, it) {
			continue
		}
		if it.Role == rundown.RoleLeadOut && !opts.manual {
			if li, ok := bin.First(rundown.RoleLeadIn); ok && !r.skipped(ctx, li) {
				return li, nil
			}
			if first, ok := r.firstNonSkip(ctx, bin); ok {
				return first, nil
			}
		}
		return it, nil
	}

	// Bin exhausted: continue with the next event unless it is missing,
	// empty or MANUAL, in which case the current bin loops.
	loop := func() (rundown.Item, error) {
		if first, ok := r.firstNonSkip(ctx, bin); ok {
			return first, nil
		}
		return rundown.Item{}, fmt.Errorf("%w: bin %d has only skipped items", ErrResolutionExhausted, bin.ID)
	}

	ev, err := r.store.EventForBin(ctx, bin.ID)
	if err != nil {
		if errors.Is(err, rundown.ErrNotFound) {
			return loop()
		}
		return rundown.Item{}, r.storeErr(err)
	}
	nextEv, err := r.store.NextEvent(ctx, r.channel, ev.Start)
	if err != nil {
		if errors.Is(err, rundown.ErrNotFound) {
			return loop()
		}
		return rundown.Item{}, r.storeErr(err)
	}
	if nextEv.RunMode == rundown.RunManual {
		return loop()
	}
	nextBin, err := r.store.GetBin(ctx, nextEv.BinID)
	if err != nil {
		if errors.Is(err, rundown.ErrNotFound) {
			return loop()
		}
		return rundown.Item{}, r.storeErr(err)
	}
	if first, ok := r.firstNonSkip(ctx, nextBin); ok {
		return first, nil
	}
	return loop()
}

// stepBackward walks toward the start of the bin, then into the previous
// event's bin. With nothing before, it stays on the bin's first item.
func (r *resolver) stepBackward(ctx context.Context, from rundown.Item) (rundown.Item, error) {
	bin, err := r.store.GetBin(ctx, from.BinID)
	if err != nil {
		return rundown.Item{}, r.storeErr(err)
	}
	start := bin.Index(from.ID)
	if start < 0 {
		start = after(bin, from)
	}
	for i := start - 1; i >= 0; i-- {
		if !r.skipped(ctx, bin.Items[i]) {
			return bin.Items[i], nil
		}
	}

	ev, err := r.store.EventForBin(ctx, bin.ID)
	if err == nil {
		prev, perr := r.store.PrevEvent(ctx, r.channel, ev.Start)
		if perr == nil {
			if prevBin, berr := r.store.GetBin(ctx, prev.BinID); berr == nil {
				if last, ok := r.lastNonSkip(ctx, prevBin); ok {
					return last, nil
				}
			}
		} else if !errors.Is(perr, rundown.ErrNotFound) {
			return rundown.Item{}, r.storeErr(perr)
		}
	} else if !errors.Is(err, rundown.ErrNotFound) {
		return rundown.Item{}, r.storeErr(err)
	}

	if first, ok := r.firstNonSkip(ctx, bin); ok && first.ID != from.ID {
		return first, nil
	}
	return rundown.Item{}, fmt.Errorf("%w: nothing before item %d", ErrResolutionExhausted, from.ID)
}

// load checks cueability and fetches the asset and event of it.
func (r *resolver) load(ctx context.Context, it rundown.Item) (resolved, error) {
	res := resolved{item: it}
	if ev, err := r.store.EventForBin(ctx, it.BinID); err == nil {
		res.event = ev
	} else if !errors.Is(err, rundown.ErrNotFound) {
		return resolved{}, r.storeErr(err)
	}

	switch it.Role {
	case rundown.RoleLive:
		return res, nil
	case rundown.RoleNone:
	default:
		return resolved{}, fmt.Errorf("%w: item %d is a %s marker", ErrNotCueable, it.ID, it.Role)
	}

	asset, err := r.store.GetAsset(ctx, it.AssetID)
	if err != nil {
		if errors.Is(err, rundown.ErrNotFound) {
			return resolved{}, fmt.Errorf("%w: item %d has no asset", ErrNotCueable, it.ID)
		}
		return resolved{}, r.storeErr(err)
	}
	st, err := r.store.PlayoutStatus(ctx, it.AssetID, r.channel)
	if err != nil {
		if errors.Is(err, rundown.ErrNotFound) {
			return resolved{}, fmt.Errorf("%w: asset %d has no playout status", ErrNotCueable, it.AssetID)
		}
		return resolved{}, r.storeErr(err)
	}
	if !st.Cueable() {
		return resolved{}, fmt.Errorf("%w: asset %d is %s", ErrNotCueable, it.AssetID, st)
	}
	res.asset = &asset
	return res, nil
}

func (r *resolver) storeErr(err error) error {
	if errors.Is(err, rundown.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("rundown store: %w", err)
}

// itemFields exposes an item and its asset to predicates.
func itemFields(it rundown.Item, a *rundown.Asset) map[string]any {
	f := map[string]any{
		"id":       it.ID,
		"bin":      it.BinID,
		"title":    it.Title,
		"role":     string(it.Role),
		"run_mode": it.RunMode.String(),
		"loop":     it.Loop,
		"mark_in":  it.MarkIn,
		"mark_out": it.MarkOut,
		"duration": it.PlayableDuration(a),
		"position": it.Position,
	}
	if a != nil {
		f["asset.id"] = a.ID
		f["asset.path"] = a.Path
		f["asset.title"] = a.Title
		f["asset.duration"] = a.Duration
		f["asset.storage"] = a.StorageID
		for k, v := range a.Meta {
			f["asset.meta."+k] = v
		}
	}
	return f
}

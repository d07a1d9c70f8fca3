// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rundown

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type statusKey struct {
	asset   int64
	channel int
}

// MemoryStore keeps everything in maps. Used by tests and the demo seed.
type MemoryStore struct {
	mu       sync.RWMutex
	events   map[int64]Event
	bins     map[int64]Bin
	items    map[int64]Item
	assets   map[int64]Asset
	statuses map[statusKey]PlayoutStatus
	asrun    []AsRunEntry
	nextRun  int64
}

var _ ReadWriter = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[int64]Event),
		bins:     make(map[int64]Bin),
		items:    make(map[int64]Item),
		assets:   make(map[int64]Asset),
		statuses: make(map[statusKey]PlayoutStatus),
	}
}

func (s *MemoryStore) GetEvent(_ context.Context, id int64) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return Event{}, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) GetBin(_ context.Context, id int64) (Bin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bins[id]
	if !ok {
		return Bin{}, fmt.Errorf("bin %d: %w", id, ErrNotFound)
	}
	out := Bin{ID: b.ID, Title: b.Title}
	for _, it := range s.items {
		if it.BinID == id {
			out.Items = append(out.Items, it)
		}
	}
	SortItems(out.Items)
	return out, nil
}

func (s *MemoryStore) GetItem(_ context.Context, id int64) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return it, nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id int64) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return Asset{}, fmt.Errorf("asset %d: %w", id, ErrNotFound)
	}
	return cloneAsset(a), nil
}

func (s *MemoryStore) EventForBin(_ context.Context, binID int64) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		found Event
		ok    bool
	)
	for _, e := range s.events {
		if e.BinID == binID && (!ok || e.ID < found.ID) {
			found, ok = e, true
		}
	}
	if !ok {
		return Event{}, fmt.Errorf("event for bin %d: %w", binID, ErrNotFound)
	}
	return found, nil
}

// pickEvent scans events of a channel and keeps the best one by less.
func (s *MemoryStore) pickEvent(channel int, match func(Event) bool, better func(a, b Event) bool) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best Event
		ok   bool
	)
	for _, e := range s.events {
		if e.ChannelID != channel || !match(e) {
			continue
		}
		if !ok || better(e, best) {
			best, ok = e, true
		}
	}
	return best, ok
}

func earlier(a, b Event) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	return a.ID < b.ID
}

func later(a, b Event) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.After(b.Start)
	}
	return a.ID > b.ID
}

func (s *MemoryStore) NextEvent(_ context.Context, channel int, after time.Time) (Event, error) {
	e, ok := s.pickEvent(channel, func(e Event) bool { return e.Start.After(after) }, earlier)
	if !ok {
		return Event{}, fmt.Errorf("next event on channel %d: %w", channel, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) PrevEvent(_ context.Context, channel int, before time.Time) (Event, error) {
	e, ok := s.pickEvent(channel, func(e Event) bool { return e.Start.Before(before) }, later)
	if !ok {
		return Event{}, fmt.Errorf("previous event on channel %d: %w", channel, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) EventAt(_ context.Context, channel int, t time.Time) (Event, error) {
	e, ok := s.pickEvent(channel, func(e Event) bool { return !e.Start.After(t) }, later)
	if !ok {
		return Event{}, fmt.Errorf("event at %s on channel %d: %w", t.Format(time.RFC3339), channel, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) AppendAsRun(_ context.Context, channel int, itemID int64, start time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun++
	s.asrun = append(s.asrun, AsRunEntry{ID: s.nextRun, ChannelID: channel, ItemID: itemID, Start: start})
	return s.nextRun, nil
}

func (s *MemoryStore) CloseAsRun(_ context.Context, id int64, stop time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.asrun {
		if s.asrun[i].ID != id {
			continue
		}
		if s.asrun[i].Stop == nil {
			st := stop
			s.asrun[i].Stop = &st
		}
		return nil
	}
	return fmt.Errorf("as-run entry %d: %w", id, ErrNotFound)
}

func (s *MemoryStore) LastAsRun(ctx context.Context, channel int) (AsRunEntry, error) {
	entries, err := s.RecentAsRun(ctx, channel, 1)
	if err != nil {
		return AsRunEntry{}, err
	}
	if len(entries) == 0 {
		return AsRunEntry{}, fmt.Errorf("as-run on channel %d: %w", channel, ErrNotFound)
	}
	return entries[0], nil
}

func (s *MemoryStore) RecentAsRun(_ context.Context, channel int, limit int) ([]AsRunEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AsRunEntry
	for i := len(s.asrun) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.asrun[i].ChannelID == channel {
			out = append(out, copyEntry(s.asrun[i]))
		}
	}
	return out, nil
}

// PlayoutStatus defaults to online for assets without an explicit status.
func (s *MemoryStore) PlayoutStatus(_ context.Context, assetID int64, channel int) (PlayoutStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.assets[assetID]; !ok {
		return StatusOffline, fmt.Errorf("asset %d: %w", assetID, ErrNotFound)
	}
	st, ok := s.statuses[statusKey{assetID, channel}]
	if !ok {
		return StatusOnline, nil
	}
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) PutAsset(_ context.Context, a Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = cloneAsset(a)
	return nil
}

// PutBin replaces the bin and all its items.
func (s *MemoryStore) PutBin(_ context.Context, b Bin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, it := range s.items {
		if it.BinID == b.ID {
			delete(s.items, id)
		}
	}
	for _, it := range b.Items {
		it.BinID = b.ID
		s.items[it.ID] = it
	}
	s.bins[b.ID] = Bin{ID: b.ID, Title: b.Title}
	return nil
}

func (s *MemoryStore) PutEvent(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
	return nil
}

func (s *MemoryStore) SetPlayoutStatus(_ context.Context, assetID int64, channel int, st PlayoutStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[statusKey{assetID, channel}] = st
	return nil
}

func copyEntry(e AsRunEntry) AsRunEntry {
	if e.Stop != nil {
		st := *e.Stop
		e.Stop = &st
	}
	return e
}

func cloneAsset(a Asset) Asset {
	if a.Meta != nil {
		m := make(map[string]any, len(a.Meta))
		for k, v := range a.Meta {
			m[k] = v
		}
		a.Meta = m
	}
	return a
}

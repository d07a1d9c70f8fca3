// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rundown

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// ErrNotFound is returned by every lookup that matches nothing.
var ErrNotFound = errors.New("rundown: not found")

// Store is the engine's read/write view of the metadata store. Bins come
// back sorted. As-run rows are append-only; only Stop is ever updated.
type Store interface {
	GetEvent(ctx context.Context, id int64) (Event, error)
	GetBin(ctx context.Context, id int64) (Bin, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	GetAsset(ctx context.Context, id int64) (Asset, error)
	EventForBin(ctx context.Context, binID int64) (Event, error)
	// NextEvent returns the earliest event starting strictly after after.
	NextEvent(ctx context.Context, channel int, after time.Time) (Event, error)
	// PrevEvent returns the latest event starting strictly before before.
	PrevEvent(ctx context.Context, channel int, before time.Time) (Event, error)
	// EventAt returns the latest event starting at or before t.
	EventAt(ctx context.Context, channel int, t time.Time) (Event, error)
	AppendAsRun(ctx context.Context, channel int, itemID int64, start time.Time) (int64, error)
	CloseAsRun(ctx context.Context, id int64, stop time.Time) error
	LastAsRun(ctx context.Context, channel int) (AsRunEntry, error)
	// RecentAsRun returns up to limit entries, newest first.
	RecentAsRun(ctx context.Context, channel int, limit int) ([]AsRunEntry, error)
	PlayoutStatus(ctx context.Context, assetID int64, channel int) (PlayoutStatus, error)
	Close() error
}

// Writer populates a store. The engine never writes rundown data; seeding
// and tests do.
type Writer interface {
	PutAsset(ctx context.Context, a Asset) error
	PutBin(ctx context.Context, b Bin) error
	PutEvent(ctx context.Context, e Event) error
	SetPlayoutStatus(ctx context.Context, assetID int64, channel int, s PlayoutStatus) error
}

// ReadWriter is a store that can also be seeded.
type ReadWriter interface {
	Store
	Writer
}

// NewStore creates a store for the backend. An empty dir with sqlite falls
// back to memory.
func NewStore(backend, dir string) (ReadWriter, error) {
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "sqlite":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(dir, "rundown.sqlite"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown rundown store backend: %s (supported: sqlite, memory)", backend)
	}
}

// Ping checks that s answers a cheap query. Channel 0 never has history,
// so a not-found reply counts as healthy.
func Ping(ctx context.Context, s Store) error {
	if _, err := s.LastAsRun(ctx, 0); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

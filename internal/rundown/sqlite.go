// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rundown

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/nebula/internal/persistence/sqlite"
)

// migrations are applied in order; index i upgrades user_version i to i+1.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL,
		storage_id INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		meta TEXT
	);
	CREATE TABLE IF NOT EXISTS bins (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY,
		bin_id INTEGER NOT NULL,
		asset_id INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		role TEXT NOT NULL DEFAULT '',
		run_mode INTEGER NOT NULL DEFAULT 0,
		loop INTEGER NOT NULL DEFAULT 0,
		mark_in REAL NOT NULL DEFAULT 0,
		mark_out REAL NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_items_bin ON items(bin_id, position, id);
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		channel_id INTEGER NOT NULL,
		start_ms INTEGER NOT NULL,
		run_mode INTEGER NOT NULL DEFAULT 0,
		bin_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_channel_start ON events(channel_id, start_ms, id);
	CREATE INDEX IF NOT EXISTS idx_events_bin ON events(bin_id);
	CREATE TABLE IF NOT EXISTS asrun (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		start_ms INTEGER NOT NULL,
		stop_ms INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_asrun_channel ON asrun(channel_id, id);
	`,
	`
	CREATE TABLE IF NOT EXISTS playout_status (
		asset_id INTEGER NOT NULL,
		channel_id INTEGER NOT NULL,
		status INTEGER NOT NULL,
		PRIMARY KEY (asset_id, channel_id)
	);
	`,
}

// SchemaVersion is the user_version a fully migrated database reports.
var SchemaVersion = len(migrations)

// SqliteStore implements ReadWriter on SQLite. Timestamps are unix
// milliseconds.
type SqliteStore struct {
	DB *sql.DB
}

var _ ReadWriter = (*SqliteStore)(nil)

// NewSqliteStore opens and migrates the database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	if err := sqlite.Migrate(context.Background(), db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rundown store: migration failed: %w", err)
	}

	return &SqliteStore{DB: db}, nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return err
}

const eventColumns = `id, channel_id, start_ms, run_mode, bin_id, title`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var (
		e       Event
		startMs int64
		mode    int
	)
	if err := row.Scan(&e.ID, &e.ChannelID, &startMs, &mode, &e.BinID, &e.Title); err != nil {
		return Event{}, err
	}
	e.Start = fromMillis(startMs)
	e.RunMode = RunMode(mode)
	return e, nil
}

func (s *SqliteStore) GetEvent(ctx context.Context, id int64) (Event, error) {
	e, err := scanEvent(s.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return Event{}, notFound(err, "event %d", id)
	}
	return e, nil
}

func (s *SqliteStore) EventForBin(ctx context.Context, binID int64) (Event, error) {
	e, err := scanEvent(s.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE bin_id = ? ORDER BY id LIMIT 1`, binID))
	if err != nil {
		return Event{}, notFound(err, "event for bin %d", binID)
	}
	return e, nil
}

func (s *SqliteStore) NextEvent(ctx context.Context, channel int, after time.Time) (Event, error) {
	e, err := scanEvent(s.DB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE channel_id = ? AND start_ms > ? ORDER BY start_ms, id LIMIT 1`,
		channel, toMillis(after)))
	if err != nil {
		return Event{}, notFound(err, "next event on channel %d", channel)
	}
	return e, nil
}

func (s *SqliteStore) PrevEvent(ctx context.Context, channel int, before time.Time) (Event, error) {
	e, err := scanEvent(s.DB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE channel_id = ? AND start_ms < ? ORDER BY start_ms DESC, id DESC LIMIT 1`,
		channel, toMillis(before)))
	if err != nil {
		return Event{}, notFound(err, "previous event on channel %d", channel)
	}
	return e, nil
}

func (s *SqliteStore) EventAt(ctx context.Context, channel int, t time.Time) (Event, error) {
	e, err := scanEvent(s.DB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE channel_id = ? AND start_ms <= ? ORDER BY start_ms DESC, id DESC LIMIT 1`,
		channel, toMillis(t)))
	if err != nil {
		return Event{}, notFound(err, "event at %s on channel %d", t.Format(time.RFC3339), channel)
	}
	return e, nil
}

const itemColumns = `id, bin_id, asset_id, position, role, run_mode, loop, mark_in, mark_out, duration, title`

func scanItem(row interface{ Scan(...any) error }) (Item, error) {
	var (
		it   Item
		role string
		mode int
	)
	if err := row.Scan(&it.ID, &it.BinID, &it.AssetID, &it.Position, &role, &mode, &it.Loop, &it.MarkIn, &it.MarkOut, &it.Duration, &it.Title); err != nil {
		return Item{}, err
	}
	it.Role = Role(role)
	it.RunMode = RunMode(mode)
	return it, nil
}

func (s *SqliteStore) GetItem(ctx context.Context, id int64) (Item, error) {
	it, err := scanItem(s.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err != nil {
		return Item{}, notFound(err, "item %d", id)
	}
	return it, nil
}

func (s *SqliteStore) GetBin(ctx context.Context, id int64) (Bin, error) {
	b := Bin{ID: id}
	if err := s.DB.QueryRowContext(ctx, `SELECT title FROM bins WHERE id = ?`, id).Scan(&b.Title); err != nil {
		return Bin{}, notFound(err, "bin %d", id)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE bin_id = ? ORDER BY position, id`, id)
	if err != nil {
		return Bin{}, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return Bin{}, err
		}
		b.Items = append(b.Items, it)
	}
	return b, rows.Err()
}

func (s *SqliteStore) GetAsset(ctx context.Context, id int64) (Asset, error) {
	var (
		a    Asset
		meta sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `SELECT id, path, storage_id, duration, title, meta FROM assets WHERE id = ?`, id).
		Scan(&a.ID, &a.Path, &a.StorageID, &a.Duration, &a.Title, &meta)
	if err != nil {
		return Asset{}, notFound(err, "asset %d", id)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &a.Meta); err != nil {
			return Asset{}, fmt.Errorf("asset %d: decode meta: %w", id, err)
		}
	}
	return a, nil
}

func (s *SqliteStore) AppendAsRun(ctx context.Context, channel int, itemID int64, start time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `INSERT INTO asrun (channel_id, item_id, start_ms) VALUES (?, ?, ?)`,
		channel, itemID, toMillis(start))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CloseAsRun sets stop once; an already closed entry is left untouched.
func (s *SqliteStore) CloseAsRun(ctx context.Context, id int64, stop time.Time) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE asrun SET stop_ms = COALESCE(stop_ms, ?) WHERE id = ?`, toMillis(stop), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("as-run entry %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SqliteStore) LastAsRun(ctx context.Context, channel int) (AsRunEntry, error) {
	entries, err := s.RecentAsRun(ctx, channel, 1)
	if err != nil {
		return AsRunEntry{}, err
	}
	if len(entries) == 0 {
		return AsRunEntry{}, fmt.Errorf("as-run on channel %d: %w", channel, ErrNotFound)
	}
	return entries[0], nil
}

func (s *SqliteStore) RecentAsRun(ctx context.Context, channel int, limit int) ([]AsRunEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, channel_id, item_id, start_ms, stop_ms FROM asrun WHERE channel_id = ? ORDER BY id DESC LIMIT ?`,
		channel, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AsRunEntry
	for rows.Next() {
		var (
			e       AsRunEntry
			startMs int64
			stopMs  sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.ItemID, &startMs, &stopMs); err != nil {
			return nil, err
		}
		e.Start = fromMillis(startMs)
		if stopMs.Valid {
			st := fromMillis(stopMs.Int64)
			e.Stop = &st
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PlayoutStatus defaults to online for assets without an explicit row.
func (s *SqliteStore) PlayoutStatus(ctx context.Context, assetID int64, channel int) (PlayoutStatus, error) {
	var st sql.NullInt64
	err := s.DB.QueryRowContext(ctx,
		`SELECT ps.status FROM assets a LEFT JOIN playout_status ps ON ps.asset_id = a.id AND ps.channel_id = ? WHERE a.id = ?`,
		channel, assetID).Scan(&st)
	if err != nil {
		return StatusOffline, notFound(err, "asset %d", assetID)
	}
	if !st.Valid {
		return StatusOnline, nil
	}
	return PlayoutStatus(st.Int64), nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

func (s *SqliteStore) PutAsset(ctx context.Context, a Asset) error {
	var meta sql.NullString
	if len(a.Meta) > 0 {
		b, err := json.Marshal(a.Meta)
		if err != nil {
			return fmt.Errorf("asset %d: encode meta: %w", a.ID, err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO assets (id, path, storage_id, duration, title, meta) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		path = excluded.path,
		storage_id = excluded.storage_id,
		duration = excluded.duration,
		title = excluded.title,
		meta = excluded.meta
	`, a.ID, a.Path, a.StorageID, a.Duration, a.Title, meta)
	return err
}

// PutBin replaces the bin and all its items in one transaction.
func (s *SqliteStore) PutBin(ctx context.Context, b Bin) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO bins (id, title) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET title = excluded.title`, b.ID, b.Title); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE bin_id = ?`, b.ID); err != nil {
		return err
	}
	for _, it := range b.Items {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, b.ID, it.AssetID, it.Position, string(it.Role), int(it.RunMode), it.Loop, it.MarkIn, it.MarkOut, it.Duration, it.Title)
		if err != nil {
			return fmt.Errorf("item %d: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SqliteStore) PutEvent(ctx context.Context, e Event) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		channel_id = excluded.channel_id,
		start_ms = excluded.start_ms,
		run_mode = excluded.run_mode,
		bin_id = excluded.bin_id,
		title = excluded.title
	`, e.ID, e.ChannelID, toMillis(e.Start), int(e.RunMode), e.BinID, e.Title)
	return err
}

func (s *SqliteStore) SetPlayoutStatus(ctx context.Context, assetID int64, channel int, st PlayoutStatus) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO playout_status (asset_id, channel_id, status) VALUES (?, ?, ?)
	ON CONFLICT(asset_id, channel_id) DO UPDATE SET status = excluded.status
	`, assetID, channel, int(st))
	return err
}

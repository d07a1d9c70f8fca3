// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rundown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout of a rundown fixture.
type SeedFile struct {
	Assets []SeedAsset `yaml:"assets"`
	Bins   []SeedBin   `yaml:"bins"`
	Events []SeedEvent `yaml:"events"`
	AsRun  []SeedAsRun `yaml:"asrun"`
}

type SeedAsset struct {
	ID        int64          `yaml:"id"`
	Path      string         `yaml:"path"`
	StorageID int            `yaml:"storage"`
	Duration  float64        `yaml:"duration"`
	Title     string         `yaml:"title"`
	Meta      map[string]any `yaml:"meta"`
	// Status maps channel id to playout status name.
	Status map[int]string `yaml:"status"`
}

type SeedBin struct {
	ID    int64      `yaml:"id"`
	Title string     `yaml:"title"`
	Items []SeedItem `yaml:"items"`
}

type SeedItem struct {
	ID       int64   `yaml:"id"`
	Asset    int64   `yaml:"asset"`
	Position *int    `yaml:"position"`
	Role     Role    `yaml:"role"`
	RunMode  RunMode `yaml:"runMode"`
	Loop     bool    `yaml:"loop"`
	MarkIn   float64 `yaml:"markIn"`
	MarkOut  float64 `yaml:"markOut"`
	Duration float64 `yaml:"duration"`
	Title    string  `yaml:"title"`
}

type SeedEvent struct {
	ID      int64   `yaml:"id"`
	Channel int     `yaml:"channel"`
	Start   string  `yaml:"start"`
	RunMode RunMode `yaml:"runMode"`
	Bin     int64   `yaml:"bin"`
	Title   string  `yaml:"title"`
}

type SeedAsRun struct {
	Channel int    `yaml:"channel"`
	Item    int64  `yaml:"item"`
	Start   string `yaml:"start"`
	Stop    string `yaml:"stop"`
}

// Seed loads a YAML fixture from path into w. now anchors relative times.
func Seed(ctx context.Context, w ReadWriter, path string, now time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	return SeedBytes(ctx, w, data, now)
}

// SeedBytes is Seed over an in-memory document. Times are RFC3339 or a Go
// duration relative to now ("-5m", "+1h", "0s").
func SeedBytes(ctx context.Context, w ReadWriter, data []byte, now time.Time) error {
	var f SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse seed: %w", err)
	}

	for _, a := range f.Assets {
		if err := w.PutAsset(ctx, Asset{ID: a.ID, Path: a.Path, StorageID: a.StorageID, Duration: a.Duration, Title: a.Title, Meta: a.Meta}); err != nil {
			return fmt.Errorf("seed asset %d: %w", a.ID, err)
		}
		for ch, name := range a.Status {
			st, err := ParsePlayoutStatus(name)
			if err != nil {
				return fmt.Errorf("seed asset %d: %w", a.ID, err)
			}
			if err := w.SetPlayoutStatus(ctx, a.ID, ch, st); err != nil {
				return fmt.Errorf("seed asset %d status: %w", a.ID, err)
			}
		}
	}

	for _, b := range f.Bins {
		bin := Bin{ID: b.ID, Title: b.Title}
		for i, it := range b.Items {
			if !it.Role.Valid() {
				return fmt.Errorf("seed item %d: unknown role %q", it.ID, it.Role)
			}
			pos := i
			if it.Position != nil {
				pos = *it.Position
			}
			bin.Items = append(bin.Items, Item{
				ID: it.ID, BinID: b.ID, AssetID: it.Asset, Position: pos, Role: it.Role,
				RunMode: it.RunMode, Loop: it.Loop, MarkIn: it.MarkIn, MarkOut: it.MarkOut,
				Duration: it.Duration, Title: it.Title,
			})
		}
		if err := w.PutBin(ctx, bin); err != nil {
			return fmt.Errorf("seed bin %d: %w", b.ID, err)
		}
	}

	for _, e := range f.Events {
		start, err := parseSeedTime(e.Start, now)
		if err != nil {
			return fmt.Errorf("seed event %d: %w", e.ID, err)
		}
		if err := w.PutEvent(ctx, Event{ID: e.ID, ChannelID: e.Channel, Start: start, RunMode: e.RunMode, BinID: e.Bin, Title: e.Title}); err != nil {
			return fmt.Errorf("seed event %d: %w", e.ID, err)
		}
	}

	for _, r := range f.AsRun {
		start, err := parseSeedTime(r.Start, now)
		if err != nil {
			return fmt.Errorf("seed as-run for item %d: %w", r.Item, err)
		}
		id, err := w.AppendAsRun(ctx, r.Channel, r.Item, start)
		if err != nil {
			return fmt.Errorf("seed as-run for item %d: %w", r.Item, err)
		}
		if r.Stop == "" {
			continue
		}
		stop, err := parseSeedTime(r.Stop, now)
		if err != nil {
			return fmt.Errorf("seed as-run for item %d: %w", r.Item, err)
		}
		if err := w.CloseAsRun(ctx, id, stop); err != nil {
			return fmt.Errorf("seed as-run for item %d: %w", r.Item, err)
		}
	}
	return nil
}

func parseSeedTime(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q is neither RFC3339 nor a relative duration", s)
	}
	return now.Add(d), nil
}

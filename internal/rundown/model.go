// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rundown models the scheduled rundown read by the playout engine
// and the as-run log it writes, together with the stores that hold them.
package rundown

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// RunMode is the per-event or per-item advance policy.
type RunMode int

const (
	RunAuto RunMode = iota
	RunManual
	RunSoft
	RunHard
	RunSkip
)

var runModeNames = [...]string{"AUTO", "MANUAL", "SOFT", "HARD", "SKIP"}

func (m RunMode) String() string {
	if m < 0 || int(m) >= len(runModeNames) {
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
	return runModeNames[m]
}

// ParseRunMode accepts the names case-insensitively; empty means AUTO.
func ParseRunMode(s string) (RunMode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RunAuto, nil
	}
	for i, n := range runModeNames {
		if n == s {
			return RunMode(i), nil
		}
	}
	return RunAuto, fmt.Errorf("rundown: unknown run mode %q", s)
}

func (m RunMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *RunMode) UnmarshalText(b []byte) error {
	v, err := ParseRunMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Role marks structural items that carry no asset.
type Role string

const (
	RoleNone        Role = ""
	RoleLive        Role = "live"
	RoleLeadIn      Role = "lead_in"
	RoleLeadOut     Role = "lead_out"
	RolePlaceholder Role = "placeholder"
)

// Virtual reports whether the role stands in for an asset.
func (r Role) Virtual() bool { return r != RoleNone }

// Valid reports a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleLive, RoleLeadIn, RoleLeadOut, RolePlaceholder:
		return true
	}
	return false
}

// Event anchors a bin in time on one channel.
type Event struct {
	ID        int64
	ChannelID int
	Start     time.Time
	RunMode   RunMode
	BinID     int64
	Title     string
}

// Item is one entry of a bin.
type Item struct {
	ID      int64
	BinID   int64
	AssetID int64
	// Position orders items in their bin; ties break on ID.
	Position int
	Role     Role
	RunMode  RunMode
	Loop     bool
	MarkIn   float64
	MarkOut  float64
	// Duration applies to virtual items, which have no asset to take it from.
	Duration float64
	Title    string
}

// Bin is an ordered list of items.
type Bin struct {
	ID    int64
	Title string
	Items []Item
}

// SortItems orders items by (Position, ID).
func SortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
}

// Index returns the position of item id in the bin, or -1.
func (b Bin) Index(id int64) int {
	for i, it := range b.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// First returns the first item with the given role.
func (b Bin) First(role Role) (Item, bool) {
	for _, it := range b.Items {
		if it.Role == role {
			return it, true
		}
	}
	return Item{}, false
}

// Asset is a media reference.
type Asset struct {
	ID        int64
	Path      string
	StorageID int
	Duration  float64
	Title     string
	Meta      map[string]any
}

// ClipName is the identifier the device knows the media by: the path with
// forward slashes and without extension.
func (a Asset) ClipName() string {
	p := strings.ReplaceAll(a.Path, "\\", "/")
	return strings.TrimSuffix(p, path.Ext(p))
}

// PlayableDuration is the asset duration trimmed by the item's marks.
func (it Item) PlayableDuration(a *Asset) float64 {
	end := it.Duration
	if a != nil && a.Duration > 0 {
		end = a.Duration
	}
	if it.MarkOut > 0 && (end <= 0 || it.MarkOut < end) {
		end = it.MarkOut
	}
	d := end - it.MarkIn
	if d < 0 {
		return 0
	}
	return d
}

// AsRunEntry records one airing. Stop is nil while the item is on air.
type AsRunEntry struct {
	ID        int64
	ChannelID int
	ItemID    int64
	Start     time.Time
	Stop      *time.Time
}

// Open reports whether the entry has not been closed.
func (e AsRunEntry) Open() bool { return e.Stop == nil }

// PlayoutStatus says whether an asset's media is usable on a channel.
type PlayoutStatus int

const (
	StatusOffline PlayoutStatus = iota
	StatusOnline
	StatusCorrupted
	StatusRemote
	StatusCreating
)

var statusNames = [...]string{"offline", "online", "corrupted", "remote", "creating"}

func (s PlayoutStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("PlayoutStatus(%d)", int(s))
	}
	return statusNames[s]
}

// ParsePlayoutStatus accepts the lowercase names.
func ParsePlayoutStatus(s string) (PlayoutStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range statusNames {
		if n == s {
			return PlayoutStatus(i), nil
		}
	}
	return StatusOffline, fmt.Errorf("rundown: unknown playout status %q", s)
}

// Cueable reports whether the media can be loaded.
func (s PlayoutStatus) Cueable() bool { return s == StatusOnline || s == StatusCreating }

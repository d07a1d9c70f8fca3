// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"path"
	"strings"
	"time"

	"github.com/ManuGH/nebula/internal/device"
	"github.com/ManuGH/nebula/internal/rundown"
)

// slot is an item the engine believes is on air or cued, with everything
// needed to address it on the device.
type slot struct {
	item  rundown.Item
	asset *rundown.Asset
	event rundown.Event
	// fname is the normalised name the device reports for this slot.
	fname string
	// device name the slot was loaded with
	source string
	opts   device.CueOptions
	live   bool
	at     time.Time
}

func (s *slot) itemID() int64 {
	if s == nil {
		return 0
	}
	return s.item.ID
}

func (s *slot) playable() float64 {
	if s == nil {
		return 0
	}
	return s.item.PlayableDuration(s.asset)
}

// Stat is the immutable snapshot returned by Stat and published to
// observers. Zero ids mean "none".
type Stat struct {
	ChannelID    int       `json:"channel_id"`
	CurrentItem  int64     `json:"current_item"`
	CurrentEvent int64     `json:"current_event"`
	CurrentAsset int64     `json:"current_asset"`
	CurrentTitle string    `json:"current_title,omitempty"`
	CurrentFname string    `json:"current_fname,omitempty"`
	CuedItem     int64     `json:"cued_item"`
	CuedFname    string    `json:"cued_fname,omitempty"`
	CurrentLive  bool      `json:"current_live"`
	CuedLive     bool      `json:"cued_live"`
	Cueing       bool      `json:"cueing"`
	Position     float64   `json:"position"`
	Duration     float64   `json:"duration"`
	Paused       bool      `json:"paused"`
	AsRunID      int64     `json:"asrun_id,omitempty"`
	BroadcastDay string    `json:"broadcast_day"`
	Connected    bool      `json:"connected"`
	BadRequests  int       `json:"bad_requests"`
	Time         time.Time `json:"time"`
}

// Remaining is the time left in the on-air clip.
func (s Stat) Remaining() float64 {
	if s.Duration <= s.Position {
		return 0
	}
	return s.Duration - s.Position
}

// sameState ignores the timestamp so unchanged snapshots are not resent.
func sameState(a, b Stat) bool {
	a.Time, b.Time = time.Time{}, time.Time{}
	return a == b
}

// normalizeName folds clip names the way devices report them: lowercase,
// forward slashes, no extension.
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "\\", "/")))
	return strings.TrimSuffix(s, path.Ext(s))
}

// sameClip compares a device-reported name with an expected one. Some
// devices report only the base name, so a path suffix match counts.
func sameClip(reported, expected string) bool {
	if reported == "" || expected == "" {
		return false
	}
	if reported == expected {
		return true
	}
	return strings.HasSuffix(expected, "/"+reported) || strings.HasSuffix(reported, "/"+expected)
}

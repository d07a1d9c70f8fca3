// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package osc

import (
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProducerEmpty is what the device reports for a layer without content.
const ProducerEmpty = "empty"

// Rational is a frame rate expressed as a fraction.
type Rational struct {
	Num int64
	Den int64
}

// Float returns the rate as frames per second, or 0 when undefined.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// LayerState is one foreground or background slot of a layer.
type LayerState struct {
	Name       string
	Path       string
	Producer   string
	Position   float64
	Duration   float64
	ClipStart  float64
	ClipLength float64
	Frame      int64
	Frames     int64
	Paused     bool
	Loop       bool
	FPS        Rational
	UpdatedAt  time.Time
}

// Clip returns the clip identifier: the reported name, or the path's base
// name without extension when only the path is known.
func (l LayerState) Clip() string {
	if l.Name != "" {
		return l.Name
	}
	if l.Path == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(l.Path, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Empty reports whether the slot holds no content.
func (l LayerState) Empty() bool {
	return l.Clip() == "" && (l.Producer == "" || l.Producer == ProducerEmpty)
}

// Layer is the foreground/background pair of one layer.
type Layer struct {
	Foreground LayerState
	Background LayerState
}

type channelState struct {
	layers    map[int]*Layer
	updatedAt time.Time
}

// State folds telemetry messages into a channel → layer → slot tree. It is
// safe for concurrent use; readers get copies.
type State struct {
	mu       sync.RWMutex
	channels map[int]*channelState
	// slotTTL blanks slots the device stopped reporting on.
	slotTTL time.Duration
}

// NewState returns an empty tree. Slots not refreshed within slotTTL read as
// empty; zero disables expiry.
func NewState(slotTTL time.Duration) *State {
	return &State{
		channels: make(map[int]*channelState),
		slotTTL:  slotTTL,
	}
}

// HandleMessage implements Handler.
func (s *State) HandleMessage(msg *Message, at time.Time) {
	s.Apply(msg, at)
}

// Apply folds one message into the tree and reports whether it was a layer
// message understood by the tree. Any message under /channel/{n} refreshes
// the channel's LastUpdate, so an idle channel is not mistaken for a silent one.
func (s *State) Apply(msg *Message, at time.Time) bool {
	parts := msg.Parts()
	if len(parts) < 2 || parts[0] != "channel" {
		return false
	}
	chID, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[chID]
	if !ok {
		cs = &channelState{layers: make(map[int]*Layer)}
		s.channels[chID] = cs
	}
	cs.updatedAt = at

	// channel/{n}/stage/layer/{m}/...
	if len(parts) < 6 || parts[2] != "stage" || parts[3] != "layer" {
		return false
	}
	layerID, err := strconv.Atoi(parts[4])
	if err != nil {
		return false
	}
	background := false
	attr := parts[5:]
	switch parts[5] {
	case "foreground":
		attr = parts[6:]
	case "background":
		background = true
		attr = parts[6:]
	}
	if len(attr) == 0 {
		return false
	}

	layer, ok := cs.layers[layerID]
	if !ok {
		layer = &Layer{}
		cs.layers[layerID] = layer
	}
	slot := &layer.Foreground
	if background {
		slot = &layer.Background
	}
	if !applyAttr(slot, strings.Join(attr, "/"), msg.Args) {
		return false
	}
	slot.UpdatedAt = at
	return true
}

func applyAttr(slot *LayerState, attr string, args []any) bool {
	switch attr {
	case "producer", "type":
		p, ok := argString(args, 0)
		if !ok {
			return false
		}
		if p == ProducerEmpty {
			*slot = LayerState{}
		}
		slot.Producer = p
	case "file/name", "name":
		v, ok := argString(args, 0)
		if !ok {
			return false
		}
		slot.Name = v
	case "file/path", "path":
		v, ok := argString(args, 0)
		if !ok {
			return false
		}
		slot.Path = v
	case "file/time", "time":
		pos, ok := argFloat(args, 0)
		if !ok {
			return false
		}
		slot.Position = pos
		if dur, ok := argFloat(args, 1); ok {
			slot.Duration = dur
		}
	case "file/clip":
		start, ok := argFloat(args, 0)
		if !ok {
			return false
		}
		slot.ClipStart = start
		if length, ok := argFloat(args, 1); ok {
			slot.ClipLength = length
		}
	case "file/frame", "frame":
		f, ok := argInt(args, 0)
		if !ok {
			return false
		}
		slot.Frame = f
		if total, ok := argInt(args, 1); ok {
			slot.Frames = total
		}
	case "file/fps", "fps", "file/streams/0/fps":
		if len(args) == 0 {
			return false
		}
		switch args[0].(type) {
		case float32, float64:
			f, _ := argFloat(args, 0)
			slot.FPS = floatRational(f)
		default:
			num, ok := argInt(args, 0)
			if !ok {
				return false
			}
			den := int64(1)
			if d, ok := argInt(args, 1); ok && d != 0 {
				den = d
			}
			slot.FPS = Rational{Num: num, Den: den}
		}
	case "paused":
		v, ok := argBool(args, 0)
		if !ok {
			return false
		}
		slot.Paused = v
	case "loop", "file/loop":
		v, ok := argBool(args, 0)
		if !ok {
			return false
		}
		slot.Loop = v
	default:
		return false
	}
	return true
}

// floatRational maps common broadcast rates onto exact fractions.
func floatRational(f float64) Rational {
	switch {
	case nearly(f, 23.976):
		return Rational{Num: 24000, Den: 1001}
	case nearly(f, 29.97):
		return Rational{Num: 30000, Den: 1001}
	case nearly(f, 59.94):
		return Rational{Num: 60000, Den: 1001}
	}
	return Rational{Num: int64(f*1000 + 0.5), Den: 1000}
}

func nearly(a, b float64) bool {
	d := a - b
	return d < 0.01 && d > -0.01
}

// Layer returns a copy of one layer. Slots older than the configured TTL
// relative to now read as empty. ok is false if the layer was never reported.
func (s *State) Layer(channel, layer int, now time.Time) (Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.channels[channel]
	if !ok {
		return Layer{}, false
	}
	l, ok := cs.layers[layer]
	if !ok {
		return Layer{}, false
	}
	out := *l
	if s.slotTTL > 0 {
		if now.Sub(out.Foreground.UpdatedAt) > s.slotTTL {
			out.Foreground = LayerState{}
		}
		if now.Sub(out.Background.UpdatedAt) > s.slotTTL {
			out.Background = LayerState{}
		}
	}
	return out, true
}

// LastUpdate returns when any message for the channel was last applied.
func (s *State) LastUpdate(channel int) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cs, ok := s.channels[channel]; ok {
		return cs.updatedAt
	}
	return time.Time{}
}

func argString(args []any, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}

func argFloat(args []any, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch v := args[i].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func argInt(args []any, i int) (int64, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch v := args[i].(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func argBool(args []any, i int) (bool, bool) {
	if i >= len(args) {
		return false, false
	}
	switch v := args[i].(type) {
	case bool:
		return v, true
	case int32:
		return v != 0, true
	case int64:
		return v != 0, true
	case float32:
		return v != 0, true
	}
	return false, false
}

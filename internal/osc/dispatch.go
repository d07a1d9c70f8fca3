// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package osc

import (
	"sort"
	"time"
)

// Handler receives decoded messages together with their resolved dispatch time.
type Handler interface {
	HandleMessage(msg *Message, at time.Time)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(msg *Message, at time.Time)

// HandleMessage calls f(msg, at).
func (f HandlerFunc) HandleMessage(msg *Message, at time.Time) { f(msg, at) }

// Timed is a message with the time its enclosing bundle asked for.
type Timed struct {
	Message *Message
	At      time.Time
}

// Flatten unrolls p into its messages in ascending timetag order. Bare
// messages and immediate bundles resolve to now. Elements with equal times
// keep their wire order.
func Flatten(p Packet, now time.Time) []Timed {
	var out []Timed
	collect(p, now, now, &out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out
}

func collect(p Packet, at, now time.Time, out *[]Timed) {
	switch v := p.(type) {
	case *Message:
		*out = append(*out, Timed{Message: v, At: at})
	case *Bundle:
		t := v.Timetag.At(now)
		for _, elem := range v.Elements {
			collect(elem, t, now, out)
		}
	}
}

// Dispatch flattens p and delivers every message to h. Telemetry describes
// state, so due and future bundles alike are delivered at decode time; only
// their relative order follows the timetags.
func Dispatch(p Packet, now time.Time, h Handler) int {
	msgs := Flatten(p, now)
	for _, m := range msgs {
		h.HandleMessage(m.Message, m.At)
	}
	return len(msgs)
}

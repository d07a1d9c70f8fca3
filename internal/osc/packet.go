// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package osc decodes and encodes the Open Sound Control wire format used by
// playout devices to report their real-time state.
package osc

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformed is the class of every decode failure.
var ErrMalformed = errors.New("osc: malformed packet")

// DecodeError describes where and why a datagram could not be decoded.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("osc: %s at offset %d", e.Reason, e.Offset)
}

func (e *DecodeError) Unwrap() error { return ErrMalformed }

func decodeErr(off int, format string, args ...any) error {
	return &DecodeError{Offset: off, Reason: fmt.Sprintf(format, args...)}
}

// Packet is either a *Message or a *Bundle.
type Packet interface {
	packet()
}

// Message is a single OSC message: an address pattern plus typed arguments.
// Argument values are int32, float32, string, []byte, int64, float64,
// Timetag, bool or nil.
type Message struct {
	Address string
	Args    []any
}

func (*Message) packet() {}

// Parts splits the address pattern into its path components.
func (m *Message) Parts() []string {
	return strings.Split(strings.TrimPrefix(m.Address, "/"), "/")
}

func (m *Message) String() string {
	return fmt.Sprintf("%s %v", m.Address, m.Args)
}

// Bundle groups elements that share one timetag.
type Bundle struct {
	Timetag  Timetag
	Elements []Packet
}

func (*Bundle) packet() {}

// Timetag is a 64-bit NTP timestamp: seconds since 1900 in the upper 32 bits
// and a binary fraction of a second in the lower 32 bits.
type Timetag uint64

// Immediate is the reserved "execute now" timetag.
const Immediate Timetag = 1

// ntpEpochOffset is the number of seconds between 1900-01-01 and 1970-01-01.
const ntpEpochOffset = 2208988800

// IsImmediate reports whether t is the "now" sentinel.
func (t Timetag) IsImmediate() bool { return t == Immediate }

// At resolves the timetag against now; the immediate sentinel maps to now.
func (t Timetag) At(now time.Time) time.Time {
	if t.IsImmediate() {
		return now
	}
	secs := int64(t >> 32)
	frac := uint64(t & 0xffffffff)
	nanos := int64((frac * 1_000_000_000) >> 32)
	return time.Unix(secs-ntpEpochOffset, nanos)
}

// Time is At(time.Now()).
func (t Timetag) Time() time.Time { return t.At(time.Now()) }

// TimetagFromTime converts a wall clock time into an NTP timetag.
func TimetagFromTime(tm time.Time) Timetag {
	secs := uint64(tm.Unix() + ntpEpochOffset)
	frac := (uint64(tm.Nanosecond()) << 32) / 1_000_000_000
	return Timetag(secs<<32 | frac)
}

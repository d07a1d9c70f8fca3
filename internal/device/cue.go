// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import "math"

// DefaultFPS is used for frame math when a channel does not set a rate.
const DefaultFPS = 25.0

// CueOptions controls how a clip is loaded. MarkIn and MarkOut are seconds
// into the clip; zero means unset.
type CueOptions struct {
	// Play loads straight into the foreground.
	Play bool
	// Auto lets the device take the background clip when the foreground ends.
	Auto bool
	Loop bool
	// Live marks a live source rather than a file.
	Live    bool
	MarkIn  float64
	MarkOut float64
	FPS     float64
	// Duration is the known clip length, for backends that cannot probe media.
	Duration float64
}

func (o CueOptions) fps() float64 {
	if o.FPS <= 0 {
		return DefaultFPS
	}
	return o.FPS
}

// SeekFrames is MarkIn in frames.
func (o CueOptions) SeekFrames() int64 {
	if o.MarkIn <= 0 {
		return 0
	}
	return int64(math.Round(o.MarkIn * o.fps()))
}

// LengthFrames is the trimmed length in frames, zero when no mark-out is set.
func (o CueOptions) LengthFrames() int64 {
	if o.MarkOut <= 0 || o.MarkOut <= o.MarkIn {
		return 0
	}
	return int64(math.Round((o.MarkOut - o.MarkIn) * o.fps()))
}

// PlayableDuration is the trimmed length in seconds.
func (o CueOptions) PlayableDuration() float64 {
	end := o.Duration
	if o.MarkOut > 0 && (end <= 0 || o.MarkOut < end) {
		end = o.MarkOut
	}
	if end <= 0 {
		return 0
	}
	d := end - math.Max(o.MarkIn, 0)
	if d < 0 {
		return 0
	}
	return d
}

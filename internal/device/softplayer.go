// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultLiveProducer = "decklink"

// clip is one loaded slot of the software player.
type clip struct {
	name     string
	producer string
	opts     CueOptions
	// length is the playable length in seconds; zero plays forever.
	length float64

	startedAt time.Time
	// elapsed accumulates play time across pauses.
	elapsed time.Duration
	paused  bool
}

func (c *clip) position(now time.Time) float64 {
	d := c.elapsed
	if !c.paused {
		d += now.Sub(c.startedAt)
	}
	pos := d.Seconds()
	if c.length > 0 && c.opts.Loop {
		for pos >= c.length {
			pos -= c.length
		}
	}
	return pos
}

func (c *clip) finished(now time.Time) bool {
	if c.length <= 0 || c.opts.Loop || c.paused {
		return false
	}
	return c.position(now) >= c.length
}

// SoftPlayer is an in-process player driven by a clock. It mirrors the
// foreground/background semantics of a CasparCG layer closely enough for
// demos and end-to-end tests, without any media I/O.
type SoftPlayer struct {
	now          func() time.Time
	liveProducer string

	mu        sync.Mutex
	connected bool
	fg        *clip
	bg        *clip
	last      Status
	// Commands records every command line for inspection.
	commands []string
}

var _ Controller = (*SoftPlayer)(nil)

// NewSoftPlayer returns a player with empty slots.
func NewSoftPlayer(opts Options) *SoftPlayer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	live := opts.LiveProducer
	if live == "" {
		live = defaultLiveProducer
	}
	return &SoftPlayer{now: now, liveProducer: live}
}

func (p *SoftPlayer) Connect(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *SoftPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

// Commands returns the command log in wire form.
func (p *SoftPlayer) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

func (p *SoftPlayer) record(format string, args ...any) {
	p.commands = append(p.commands, fmt.Sprintf(format, args...))
}

// advance applies AUTO transitions that happened since the last call.
func (p *SoftPlayer) advance(now time.Time) {
	if p.fg == nil || !p.fg.finished(now) {
		return
	}
	if p.bg == nil || !p.bg.opts.Auto {
		return
	}
	// The background starts exactly when the foreground ran out.
	ended := p.fg.startedAt.Add(time.Duration(p.fg.length*float64(time.Second)) - p.fg.elapsed)
	if ended.After(now) {
		ended = now
	}
	next := p.bg
	next.startedAt = ended
	next.paused = false
	p.fg, p.bg = next, nil
}

func (p *SoftPlayer) newClip(name string, opts CueOptions, now time.Time, paused bool) *clip {
	c := &clip{name: name, opts: opts, startedAt: now, paused: paused}
	if opts.Live {
		c.producer = p.liveProducer
		return c
	}
	c.producer = "ffmpeg"
	c.length = opts.PlayableDuration()
	return c
}

func (p *SoftPlayer) Query(_ context.Context, cmd string) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("%s", cmd)
	verb := strings.ToUpper(strings.SplitN(strings.TrimSpace(cmd), " ", 2)[0])
	switch verb {
	case "VERSION":
		return success(http.StatusCreated, "softplayer")
	case "INFO":
		return success(http.StatusCreated, fmt.Sprintf("fg=%q bg=%q", clipName(p.fg), clipName(p.bg)))
	case "":
		return Response{Code: http.StatusBadRequest, Message: "empty command", Err: fmt.Errorf("%w: empty command", ErrRejected)}
	}
	return Response{Code: http.StatusBadRequest, Message: "unknown command " + verb, Err: fmt.Errorf("%w: unknown command %s", ErrRejected, verb)}
}

func (p *SoftPlayer) Cue(_ context.Context, name string, opts CueOptions) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, down := p.unreachable(); down {
		return r
	}
	now := p.now()
	p.advance(now)
	if opts.Play {
		p.record("PLAY %q", name)
		p.fg = p.newClip(name, opts, now, false)
		p.bg = nil
		return success(http.StatusAccepted, "PLAY OK")
	}
	p.record("LOADBG %q", name)
	p.bg = p.newClip(name, opts, now, true)
	return success(http.StatusAccepted, "LOADBG OK")
}

func (p *SoftPlayer) Take(context.Context) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, down := p.unreachable(); down {
		return r
	}
	now := p.now()
	p.advance(now)
	p.record("PLAY")
	if p.bg == nil {
		if p.fg == nil {
			return Response{Code: http.StatusNotFound, Message: "PLAY FAILED", Err: fmt.Errorf("%w: nothing loaded", ErrRejected)}
		}
		p.resumeLocked(now)
		return success(http.StatusAccepted, "PLAY OK")
	}
	next := p.bg
	next.startedAt = now
	next.paused = false
	p.fg, p.bg = next, nil
	return success(http.StatusAccepted, "PLAY OK")
}

func (p *SoftPlayer) Retake(_ context.Context, name string, opts CueOptions) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, down := p.unreachable(); down {
		return r
	}
	now := p.now()
	p.advance(now)
	p.record("PLAY %q", name)
	p.fg = p.newClip(name, opts, now, false)
	return success(http.StatusAccepted, "PLAY OK")
}

func (p *SoftPlayer) Freeze(_ context.Context, pause bool) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, down := p.unreachable(); down {
		return r
	}
	now := p.now()
	p.advance(now)
	if p.fg == nil {
		return Response{Code: http.StatusNotFound, Message: "nothing playing", Err: fmt.Errorf("%w: nothing playing", ErrRejected)}
	}
	if pause {
		p.record("PAUSE")
		if !p.fg.paused {
			p.fg.elapsed += now.Sub(p.fg.startedAt)
			p.fg.paused = true
		}
		return success(http.StatusAccepted, "PAUSE OK")
	}
	p.record("RESUME")
	p.resumeLocked(now)
	return success(http.StatusAccepted, "RESUME OK")
}

func (p *SoftPlayer) resumeLocked(now time.Time) {
	if p.fg != nil && p.fg.paused {
		p.fg.paused = false
		p.fg.startedAt = now
	}
}

// Abort loads name paused into the foreground; the background is kept.
func (p *SoftPlayer) Abort(_ context.Context, name string, opts CueOptions) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, down := p.unreachable(); down {
		return r
	}
	now := p.now()
	p.advance(now)
	p.record("LOAD %q", name)
	p.fg = p.newClip(name, opts, now, true)
	return success(http.StatusAccepted, "LOAD OK")
}

func (p *SoftPlayer) Clear(context.Context) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, down := p.unreachable(); down {
		return r
	}
	p.record("CLEAR")
	p.fg, p.bg = nil, nil
	return success(http.StatusAccepted, "CLEAR OK")
}

func (p *SoftPlayer) Status(context.Context) (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return Status{}, fmt.Errorf("%w: softplayer not connected", ErrUnreachable)
	}
	now := p.now()
	p.advance(now)
	st := Status{UpdatedAt: now, FPS: DefaultFPS}
	if p.bg != nil {
		st.CuedFilename = p.bg.identity()
	}
	if fg := p.fg; fg != nil {
		st.CurrentFilename = fg.identity()
		st.Position = fg.position(now)
		if fg.length > 0 && st.Position > fg.length {
			st.Position = fg.length
		}
		st.Duration = fg.length
		st.Paused = fg.paused
		st.Loop = fg.opts.Loop
		st.Producer = fg.producer
		if fg.opts.FPS > 0 {
			st.FPS = fg.opts.FPS
		}
	}
	p.last = st
	return st, nil
}

// identity is what telemetry reports for the slot: live inputs show their
// producer, files their name.
func (c *clip) identity() string {
	if c.opts.Live {
		return c.producer
	}
	return c.name
}

func (p *SoftPlayer) unreachable() (Response, bool) {
	if p.connected {
		return Response{}, false
	}
	return fromError(fmt.Errorf("%w: softplayer not connected", ErrUnreachable)), true
}

func (p *SoftPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last.Position
}

func (p *SoftPlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last.Duration
}

func clipName(c *clip) string {
	if c == nil {
		return ""
	}
	return c.name
}

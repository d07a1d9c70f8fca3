// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/nebula/internal/amcp"
	"github.com/ManuGH/nebula/internal/osc"
)

const defaultStaleAfter = 2 * time.Second

// Caspar drives a CasparCG-class server: commands over AMCP, state from the
// shared OSC telemetry tree.
type Caspar struct {
	channel    int
	layer      int
	client     *amcp.Client
	state      *osc.State
	staleAfter time.Duration
	now        func() time.Time

	mu   sync.Mutex
	last Status
}

var _ Controller = (*Caspar)(nil)

// NewCaspar returns an unconnected controller.
func NewCaspar(opts Options) *Caspar {
	stale := opts.StaleAfter
	if stale <= 0 {
		stale = defaultStaleAfter
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Caspar{
		channel:    opts.Channel,
		layer:      opts.Layer,
		client:     amcp.NewClient(opts.Addr, amcp.Options{Timeout: opts.CommandTimeout}),
		state:      opts.Telemetry,
		staleAfter: stale,
		now:        now,
	}
}

func (c *Caspar) Connect(ctx context.Context) error { return c.client.Connect(ctx) }

func (c *Caspar) Close() error { return c.client.Close() }

func (c *Caspar) send(ctx context.Context, cmd amcp.Command) Response {
	resp, err := c.client.Query(ctx, cmd)
	if err != nil {
		return fromError(err)
	}
	return success(resp.Code, resp.Message())
}

func (c *Caspar) Query(ctx context.Context, cmd string) Response {
	if cmd == "" {
		return Response{Code: http.StatusBadRequest, Message: "empty command", Err: fmt.Errorf("%w: empty command", ErrRejected)}
	}
	return c.send(ctx, amcp.Raw(cmd))
}

func params(opts CueOptions) amcp.Params {
	return amcp.Params{
		Seek:   opts.SeekFrames(),
		Length: opts.LengthFrames(),
		Loop:   opts.Loop,
		Auto:   opts.Auto,
	}
}

// Cue loads name into the background, or plays it at once when opts.Play.
func (c *Caspar) Cue(ctx context.Context, name string, opts CueOptions) Response {
	if opts.Play {
		p := params(opts)
		p.Auto = false
		return c.send(ctx, amcp.PlayClip(c.channel, c.layer, name, p))
	}
	return c.send(ctx, amcp.LoadBG(c.channel, c.layer, name, params(opts)))
}

func (c *Caspar) Take(ctx context.Context) Response {
	return c.send(ctx, amcp.Play(c.channel, c.layer))
}

func (c *Caspar) Retake(ctx context.Context, name string, opts CueOptions) Response {
	p := params(opts)
	p.Auto = false
	return c.send(ctx, amcp.PlayClip(c.channel, c.layer, name, p))
}

func (c *Caspar) Freeze(ctx context.Context, pause bool) Response {
	if pause {
		return c.send(ctx, amcp.Pause(c.channel, c.layer))
	}
	return c.send(ctx, amcp.Resume(c.channel, c.layer))
}

// Abort puts name into the foreground paused on its first frame. The
// background slot is left untouched.
func (c *Caspar) Abort(ctx context.Context, name string, opts CueOptions) Response {
	p := params(opts)
	p.Auto = false
	return c.send(ctx, amcp.Load(c.channel, c.layer, name, p))
}

func (c *Caspar) Clear(ctx context.Context) Response {
	return c.send(ctx, amcp.Clear(c.channel, c.layer))
}

// Status reads the layer from telemetry. A channel that has not reported
// within the stale window is unreachable even if the command link is up.
func (c *Caspar) Status(_ context.Context) (Status, error) {
	now := c.now()
	last := c.state.LastUpdate(c.channel)
	if last.IsZero() {
		return Status{}, fmt.Errorf("%w: channel %d never reported", ErrStale, c.channel)
	}
	if silent := now.Sub(last); silent > c.staleAfter {
		return Status{}, fmt.Errorf("%w: channel %d silent for %s", ErrStale, c.channel, silent.Truncate(time.Millisecond))
	}
	l, _ := c.state.Layer(c.channel, c.layer, now)
	st := Status{
		CurrentFilename: slotName(l.Foreground),
		CuedFilename:    slotName(l.Background),
		Position:        l.Foreground.Position - l.Foreground.ClipStart,
		Duration:        l.Foreground.Duration,
		Paused:          l.Foreground.Paused,
		Loop:            l.Foreground.Loop,
		Producer:        l.Foreground.Producer,
		FPS:             l.Foreground.FPS.Float(),
		UpdatedAt:       last,
	}
	if l.Foreground.ClipLength > 0 {
		st.Duration = l.Foreground.ClipLength
	}
	if st.Position < 0 {
		st.Position = 0
	}
	c.mu.Lock()
	c.last = st
	c.mu.Unlock()
	return st, nil
}

func (c *Caspar) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Position
}

func (c *Caspar) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Duration
}

// slotName is the clip identifier, or the producer name for non-file
// producers such as live inputs.
func slotName(l osc.LayerState) string {
	if name := l.Clip(); name != "" {
		return name
	}
	switch l.Producer {
	case "", osc.ProducerEmpty, "ffmpeg", "image":
		// File producers report their clip name separately.
		return ""
	}
	return l.Producer
}

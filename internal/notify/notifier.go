// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
)

const (
	DefaultMaxRate        = 3.0
	defaultPublishTimeout = 500 * time.Millisecond
)

// NotifierConfig tunes one channel's notifier.
type NotifierConfig struct {
	ChannelID int
	// Backend labels metrics ("memory", "redis", "mqtt").
	Backend string
	// MaxRate caps status messages per second.
	MaxRate        float64
	PublishTimeout time.Duration
	Now            func() time.Time
}

// Notifier throttles the status feed of one channel. A throttled snapshot
// is parked and sent by the next Flush or Status that the limiter allows,
// so the most recent state always goes out. Advances are never throttled.
type Notifier struct {
	pub     Publisher
	cfg     NotifierConfig
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu      sync.Mutex
	pending any
	parked  bool
}

// NewNotifier wraps pub. A nil pub yields a notifier that drops everything.
func NewNotifier(pub Publisher, cfg NotifierConfig) *Notifier {
	if cfg.MaxRate <= 0 {
		cfg.MaxRate = DefaultMaxRate
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	burst := int(cfg.MaxRate)
	if burst < 1 {
		burst = 1
	}
	return &Notifier{
		pub:     pub,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxRate), burst),
		logger:  nlog.WithChannel("notify", cfg.ChannelID),
	}
}

// Status offers a snapshot to the throttled status feed.
func (n *Notifier) Status(ctx context.Context, snapshot any) {
	n.mu.Lock()
	if !n.limiter.AllowN(n.cfg.Now(), 1) {
		n.pending, n.parked = snapshot, true
		n.mu.Unlock()
		metrics.IncNotification(n.cfg.Backend, string(KindStatus), "throttled")
		return
	}
	n.pending, n.parked = nil, false
	n.mu.Unlock()
	n.send(ctx, KindStatus, snapshot)
}

// Flush sends a parked snapshot if the limiter allows it now.
func (n *Notifier) Flush(ctx context.Context) {
	n.mu.Lock()
	if !n.parked || !n.limiter.AllowN(n.cfg.Now(), 1) {
		n.mu.Unlock()
		return
	}
	snapshot := n.pending
	n.pending, n.parked = nil, false
	n.mu.Unlock()
	n.send(ctx, KindStatus, snapshot)
}

// Advance publishes an on-air advance immediately.
func (n *Notifier) Advance(ctx context.Context, snapshot any) {
	n.send(ctx, KindAdvance, snapshot)
}

func (n *Notifier) send(ctx context.Context, kind Kind, data any) {
	if n == nil || n.pub == nil {
		return
	}
	msg := Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		ChannelID: n.cfg.ChannelID,
		Time:      n.cfg.Now(),
		Data:      data,
	}
	pubCtx, cancel := context.WithTimeout(ctx, n.cfg.PublishTimeout)
	defer cancel()
	if err := n.pub.Publish(pubCtx, Topic(n.cfg.ChannelID, kind), msg); err != nil {
		metrics.IncNotification(n.cfg.Backend, string(kind), "failed")
		n.logger.Debug().Err(err).Str("kind", string(kind)).Msg("notification not delivered")
		return
	}
	metrics.IncNotification(n.cfg.Backend, string(kind), "sent")
}

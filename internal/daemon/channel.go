// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/device"
	"github.com/ManuGH/nebula/internal/health"
	"github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/notify"
	"github.com/ManuGH/nebula/internal/playout"
	"github.com/ManuGH/nebula/internal/predicate"
	"github.com/ManuGH/nebula/internal/rundown"
)

// ChannelRuntime is a built, not yet running channel.
type ChannelRuntime struct {
	Service *playout.Service
	Checker health.Checker
}

// ChannelFactory builds the runtime of one channel.
type ChannelFactory func(ch config.ChannelConfig) (*ChannelRuntime, error)

// ChannelDeps are the process-wide collaborators every channel shares.
type ChannelDeps struct {
	Store     rundown.Store
	Publisher notify.Publisher
	Notify    config.NotifyConfig
	Telemetry *TelemetryHub
	Now       func() time.Time
}

// NewChannelFactory returns the factory used by the daemon.
func NewChannelFactory(deps ChannelDeps) ChannelFactory {
	return func(ch config.ChannelConfig) (*ChannelRuntime, error) {
		return buildChannel(ch, deps)
	}
}

func buildChannel(ch config.ChannelConfig, deps ChannelDeps) (*ChannelRuntime, error) {
	cfg, err := ServiceConfig(ch)
	if err != nil {
		return nil, err
	}

	opts := device.Options{
		Kind:           device.Kind(ch.Device.Kind),
		Channel:        ch.Device.Channel,
		Layer:          ch.Device.Layer,
		Addr:           net.JoinHostPort(ch.Device.Host, strconv.Itoa(ch.Device.AMCPPort)),
		CommandTimeout: ch.Device.CommandTimeout,
		StaleAfter:     ch.Device.StaleAfter,
		LiveProducer:   ch.LiveProducer,
		Now:            deps.Now,
	}
	var lastUpdate func() time.Time
	if opts.Kind == device.KindCaspar {
		if deps.Telemetry == nil {
			return nil, fmt.Errorf("channel %d: casparcg device needs a telemetry hub", ch.ID)
		}
		state, err := deps.Telemetry.State(ch.Device.OSCPort)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch.ID, err)
		}
		opts.Telemetry = state
		devChannel := ch.Device.Channel
		lastUpdate = func() time.Time { return state.LastUpdate(devChannel) }
	}
	dev, err := device.New(opts)
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", ch.ID, err)
	}

	logger := log.WithChannel("playout", ch.ID)
	notifier := notify.NewNotifier(deps.Publisher, notify.NotifierConfig{
		ChannelID:      ch.ID,
		Backend:        deps.Notify.Backend,
		MaxRate:        deps.Notify.MaxRate,
		PublishTimeout: deps.Notify.PublishTimeout,
		Now:            deps.Now,
	})
	svc, err := playout.New(cfg, playout.Deps{
		Device:   dev,
		Store:    deps.Store,
		Notifier: notifier,
		Now:      deps.Now,
		Logger:   &logger,
	})
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("channel %d: %w", ch.ID, err)
	}
	return &ChannelRuntime{
		Service: svc,
		Checker: health.NewChannelChecker(ch.ID, svc, lastUpdate, ch.Device.StaleAfter),
	}, nil
}

// ServiceConfig translates a channel configuration into the engine's.
func ServiceConfig(ch config.ChannelConfig) (playout.Config, error) {
	dayStart, err := playout.ParseDayStart(ch.DayStart)
	if err != nil {
		return playout.Config{}, fmt.Errorf("channel %d: %w", ch.ID, err)
	}
	loc := time.Local
	if ch.Timezone != "" {
		if loc, err = time.LoadLocation(ch.Timezone); err != nil {
			return playout.Config{}, fmt.Errorf("channel %d: timezone: %w", ch.ID, err)
		}
	}
	var skip *predicate.Predicate
	if ch.SkipWhen != "" {
		if skip, err = predicate.Compile(ch.SkipWhen); err != nil {
			return playout.Config{}, fmt.Errorf("channel %d: skipWhen: %w", ch.ID, err)
		}
	}
	return playout.Config{
		ChannelID:      ch.ID,
		Name:           ch.Name,
		FPS:            ch.FPS,
		DayStart:       dayStart,
		Location:       loc,
		LiveSource:     ch.LiveSource,
		LiveProducer:   ch.LiveProducer,
		SkipWhen:       skip,
		StallGrace:     ch.StallGrace,
		CueRetry:       ch.CueRetry,
		RecoverOnStart: ch.Recover(),
		Plugins:        ch.Plugins,
		Poll: device.PollerConfig{
			ChannelID:   ch.ID,
			Interval:    ch.Device.PollInterval,
			ReadTimeout: ch.Device.CommandTimeout,
		},
	}, nil
}

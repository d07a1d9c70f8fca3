// SPDX-License-Identifier: MIT

// Package daemon wires the stores, buses, channels and ops server of the
// playout daemon and owns their lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/nebula/internal/api"
	"github.com/ManuGH/nebula/internal/cache"
	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/health"
	"github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/notify"
	"github.com/ManuGH/nebula/internal/rundown"
	"github.com/ManuGH/nebula/internal/telemetry"
)

const (
	// oscSlotTTL blanks telemetry slots the device stopped refreshing.
	oscSlotTTL   = time.Second
	probeTimeout = 2 * time.Second
	serviceName  = "nebula-playout"
)

// Options configures Bootstrap.
type Options struct {
	Version string
	Config  config.AppConfig
	// Loader enables reloads; nil runs the initial config only.
	Loader *config.Loader
	// OSCBindHost is the interface the telemetry listeners bind; empty
	// means all.
	OSCBindHost string
	Now         func() time.Time
}

// Daemon is a fully wired, not yet running playout daemon.
type Daemon struct {
	App        *App
	Manager    Manager
	Supervisor *Supervisor
	Health     *health.Manager
	Telemetry  *TelemetryHub
	Store      rundown.Store
	// Bus is the in-process notification bus when notify.backend is memory.
	Bus *notify.MemoryBus

	logger zerolog.Logger
}

// Bootstrap builds every component from opts. On error everything created
// so far is released.
func Bootstrap(ctx context.Context, opts Options) (d *Daemon, err error) {
	cfg := opts.Config
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := log.WithComponent("daemon")

	var cleanup []func()
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()

	provider, err := initTelemetry(ctx, cfg, opts.Version, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry initialization failed, continuing without tracing")
	}

	store, storeCache, err := openStore(ctx, cfg, opts.Now, logger)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, func() { _ = store.Close() })

	pub, bus, err := notify.Open(ctx, notifyConfig(cfg.Notify))
	if err != nil {
		return nil, fmt.Errorf("open notification bus: %w", err)
	}
	cleanup = append(cleanup, func() { _ = pub.Close() })

	hm := health.NewManager(opts.Version)
	hm.RegisterChecker(health.NewPingChecker("store", func(ctx context.Context) error {
		return rundown.Ping(ctx, store)
	}, probeTimeout))
	if rc, ok := storeCache.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewOptionalPingChecker("cache", rc.HealthCheck, probeTimeout))
	}

	hub := NewTelemetryHub(context.WithoutCancel(ctx), opts.OSCBindHost, oscSlotTTL)
	cleanup = append(cleanup, func() { _ = hub.Close() })

	sup := NewSupervisor(NewChannelFactory(ChannelDeps{
		Store:     store,
		Publisher: pub,
		Notify:    cfg.Notify,
		Telemetry: hub,
		Now:       opts.Now,
	}), hm)

	handler := api.New(api.Config{
		ServiceName:   tracingName(provider),
		RateLimit:     cfg.Ops.RateLimit,
		EnableLogging: true,
	}, sup, hm)

	mgr, err := NewManager(Deps{Logger: logger, Ops: cfg.Ops, Handler: handler})
	if err != nil {
		return nil, err
	}

	// LIFO: telemetry flushes last, after the store saw the final writes.
	if provider != nil {
		mgr.RegisterShutdownHook("telemetry", provider.Shutdown)
	}
	mgr.RegisterShutdownHook("store", func(context.Context) error { return store.Close() })
	mgr.RegisterShutdownHook("notify", func(context.Context) error { return pub.Close() })
	mgr.RegisterShutdownHook("osc", func(context.Context) error { return hub.Close() })

	var holder *config.Holder
	if opts.Loader != nil {
		holder = config.NewHolder(cfg, opts.Loader)
	}

	return &Daemon{
		App:        NewApp(logger, mgr, cfg, holder, sup),
		Manager:    mgr,
		Supervisor: sup,
		Health:     hm,
		Telemetry:  hub,
		Store:      store,
		Bus:        bus,
		logger:     logger,
	}, nil
}

// Run blocks until ctx is cancelled or a component fails.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info().Msg("starting nebula playout daemon")
	err := d.App.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.logger.Info().Err(err).Msg("daemon stopped")
	return err
}

func openStore(ctx context.Context, cfg config.AppConfig, now func() time.Time, logger zerolog.Logger) (*rundown.CachedStore, cache.Cache, error) {
	rw, err := rundown.NewStore(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open rundown store: %w", err)
	}
	if cfg.Store.Seed != "" {
		if err := rundown.Seed(ctx, rw, cfg.Store.Seed, now()); err != nil {
			_ = rw.Close()
			return nil, nil, fmt.Errorf("seed rundown store: %w", err)
		}
		logger.Info().Str("path", cfg.Store.Seed).Msg("rundown store seeded")
	}

	var c cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}, log.WithComponent("cache"))
		if err != nil {
			_ = rw.Close()
			return nil, nil, fmt.Errorf("open redis cache: %w", err)
		}
		c = rc
	case "none":
		c = cache.NewNoOpCache()
	default:
		c = cache.NewMemoryCache(time.Minute)
	}
	logger.Info().
		Str("store_backend", cfg.Store.Backend).
		Str("cache_backend", cfg.Cache.Backend).
		Msg("rundown store ready")
	return rundown.NewCachedStore(rw, c, cfg.Cache.AssetTTL, cfg.Cache.StatusTTL), c, nil
}

func notifyConfig(n config.NotifyConfig) notify.Config {
	return notify.Config{
		Backend: n.Backend,
		Redis: notify.RedisConfig{
			Addr:     n.Redis.Addr,
			Password: n.Redis.Password,
			DB:       n.Redis.DB,
			Prefix:   n.Redis.Channel,
		},
		MQTT: notify.MQTTConfig{
			Broker:         n.MQTT.Broker,
			ClientID:       n.MQTT.ClientID,
			Username:       n.MQTT.Username,
			Password:       n.MQTT.Password,
			TopicPrefix:    n.MQTT.TopicPrefix,
			QoS:            byte(n.MQTT.QoS),
			PublishTimeout: n.PublishTimeout,
		},
	}
}

func initTelemetry(ctx context.Context, app config.AppConfig, version string, logger zerolog.Logger) (*telemetry.Provider, error) {
	cfg := app.Telemetry
	if !cfg.Enabled {
		return nil, nil
	}
	channels := make([]int, 0, len(app.Channels))
	for _, ch := range app.Channels {
		channels = append(channels, ch.ID)
	}
	telCfg := telemetry.Config{
		Enabled:        true,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.Exporter,
		Endpoint:       cfg.Endpoint,
		SamplingRate:   cfg.SamplingRate,
		Channels:       channels,
	}
	provider, err := telemetry.NewProvider(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	logger.Info().
		Str("service", telCfg.ServiceName).
		Str("endpoint", telCfg.Endpoint).
		Str("exporter", telCfg.ExporterType).
		Float64("sampling_rate", telCfg.SamplingRate).
		Msg("telemetry initialized")
	return provider, nil
}

func tracingName(p *telemetry.Provider) string {
	if p == nil {
		return ""
	}
	return serviceName
}

// WaitForShutdown returns a context cancelled on interrupt or termination.
func WaitForShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

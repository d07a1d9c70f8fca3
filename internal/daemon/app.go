// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/nebula/internal/config"
)

// App owns the long-lived runtime: config watching and reload, the channel
// supervisor and the ops server through Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	initial      config.AppConfig
	cfgHolder    *config.Holder
	supervisor   *Supervisor
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil, in which
// case initial is applied once and never reloaded.
func NewApp(logger zerolog.Logger, manager Manager, initial config.AppConfig, cfgHolder *config.Holder, supervisor *Supervisor) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		initial:      initial,
		cfgHolder:    cfgHolder,
		supervisor:   supervisor,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs. Channels are stopped before the ops server and the
// shutdown hooks run, so no channel outlives the store it writes to.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.supervisor == nil {
		return ErrMissingSupervisor
	}

	g, ctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServer()

	var updates chan config.AppConfig
	initial := a.initial
	if a.cfgHolder != nil {
		initial = a.cfgHolder.Get()

		// Watcher is best-effort: startup does not fail without it.
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		reloaded := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(reloaded)
		updates = make(chan config.AppConfig)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-reloaded:
					// Forward the holder's latest config; a notification
					// dropped on a full listener is folded in here.
					select {
					case updates <- a.cfgHolder.Get():
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		defer stopServer()
		return a.supervisor.Run(ctx, initial, updates)
	})

	g.Go(func() error {
		return a.manager.Start(serverCtx)
	})

	err := g.Wait()
	// Runs the hooks when the server never got to shut down itself.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	if shutdownErr := a.manager.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

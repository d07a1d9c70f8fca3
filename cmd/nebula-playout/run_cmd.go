// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/daemon"
	"github.com/ManuGH/nebula/internal/health"
	"github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/version"
)

func newRunCmd(configPath *string) *cobra.Command {
	var oscBind string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the playout daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), *configPath, oscBind)
		},
	}
	cmd.Flags().StringVar(&oscBind, "osc-bind", "", "interface the OSC telemetry listeners bind to (default all)")
	return cmd
}

func runDaemon(parent context.Context, configPath, oscBind string) error {
	if parent == nil {
		parent = context.Background()
	}
	// Safe defaults until the config is loaded.
	log.Configure(log.Config{Level: "info", Service: "nebula", Version: version.Version})
	logger := log.WithComponent("main")

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "config.load_failed").Str("config_path", configPath).Msg("failed to load configuration")
		return err
	}
	if err := config.Validate(cfg); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "config.invalid").Msg("configuration is invalid")
		return err
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: version.Version})
	logger = log.WithComponent("main")
	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", configPath).
		Int("channels", len(cfg.Channels)).
		Msg("configuration loaded")

	ctx, stop := daemon.WaitForShutdown(parent)
	defer stop()

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "startup.check_failed").Msg("startup checks failed; verify configuration and permissions")
		return err
	}

	opts := daemon.Options{Version: version.Version, Config: cfg, OSCBindHost: oscBind}
	if configPath != "" {
		opts.Loader = loader
	}
	d, err := daemon.Bootstrap(ctx, opts)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return d.Run(ctx)
}

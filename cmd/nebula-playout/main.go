// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command nebula-playout runs the playout control daemon and its operator
// tooling.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/version"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "nebula-playout",
		Short:         "Playout control engine for broadcast channels",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file (YAML)")

	run := newRunCmd(&configPath)
	root.RunE = run.RunE
	root.AddCommand(
		run,
		newConfigCmd(&configPath),
		newStoreCmd(&configPath),
		newHealthcheckCmd(&configPath),
	)
	return root
}

// defaultConfigPath prefers NEBULA_CONFIG, then the system path when it
// exists, and otherwise runs on environment and defaults alone.
func defaultConfigPath() string {
	if p := config.ParseString(config.EnvPrefix+"CONFIG", ""); p != "" {
		return p
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.DefaultConfigPath
	}
	return ""
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/persistence/sqlite"
	"github.com/ManuGH/nebula/internal/version"
)

const rundownDBName = "rundown.sqlite"

func newStoreCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the rundown store",
	}
	cmd.AddCommand(newStoreVerifyCmd(configPath))
	return cmd
}

func newStoreVerifyCmd(configPath *string) *cobra.Command {
	var path, mode string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the integrity of the SQLite rundown store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode = strings.ToLower(strings.TrimSpace(mode))
			if mode != "quick" && mode != "full" {
				return &exitError{code: 2, err: fmt.Errorf("invalid mode %q; use quick or full", mode)}
			}
			if path == "" {
				cfg, err := config.NewLoader(*configPath, version.Version).Load()
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				if cfg.Store.Backend != "sqlite" {
					return &exitError{code: 2, err: fmt.Errorf("store backend is %s; nothing to verify", cfg.Store.Backend)}
				}
				path = filepath.Join(cfg.Store.Path, rundownDBName)
			}
			if _, err := os.Stat(path); err != nil {
				return &exitError{code: 2, err: err}
			}
			return verifyStore(cmd, path, mode)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "SQLite file to check (default: the configured store)")
	cmd.Flags().StringVar(&mode, "mode", "quick", "verification mode: quick or full")
	return cmd
}

func verifyStore(cmd *cobra.Command, path, mode string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(cmd.ErrOrStderr(), "verifying %s (mode: %s)\n", path, mode)

	issues, err := sqlite.VerifyIntegrity(cmd.Context(), path, mode)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("verification interrupted: %w", err)}
	}
	if issues != nil {
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
		return &exitError{code: 1, err: fmt.Errorf("corruption detected in %s", path)}
	}

	v, err := sqlite.SchemaVersion(cmd.Context(), path)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	fmt.Fprintf(out, "store OK (schema version %d)\n", v)
	return nil
}

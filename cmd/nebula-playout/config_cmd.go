// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/validate"
	"github.com/ManuGH/nebula/internal/version"
)

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate or create the configuration file",
	}
	cmd.AddCommand(newConfigValidateCmd(configPath), newConfigInitCmd(configPath))
	return cmd
}

func newConfigValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration without starting channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader(*configPath, version.Version).Load()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if err := config.Validate(cfg); err != nil {
				var verr validate.ValidationError
				if errors.As(err, &verr) {
					for _, e := range verr.Errors() {
						fmt.Fprintf(cmd.ErrOrStderr(), "  - %s: %s\n", e.Field, e.Message)
					}
				}
				return &exitError{code: 1, err: fmt.Errorf("configuration is invalid")}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (%d channels)\n", len(cfg.Channels))
			return nil
		},
	}
}

func newConfigInitCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = config.DefaultConfigPath
			}
			if err := config.WriteDefault(path, force); err != nil {
				if errors.Is(err, config.ErrExists) {
					return &exitError{code: 2, err: fmt.Errorf("%s exists; use --force to overwrite", path)}
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

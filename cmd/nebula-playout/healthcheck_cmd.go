package main

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/version"
)

func newHealthcheckCmd(configPath *string) *cobra.Command {
	var mode, addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running daemon's ops listener (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/readyz"
			if mode == "live" {
				path = "/healthz"
			}
			if addr == "" {
				cfg, err := config.NewLoader(*configPath, version.Version).Load()
				if err != nil {
					return &exitError{code: 1, err: err}
				}
				addr = probeAddr(cfg.Ops.ListenAddr)
			}

			client := http.Client{Timeout: timeout}
			resp, err := client.Get("http://" + addr + path)
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("healthcheck failed (network): %w", err)}
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return &exitError{code: 1, err: fmt.Errorf("healthcheck failed (status): %s", resp.Status)}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "healthcheck successful (%s)\n", mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "ready", "healthcheck mode: ready or live")
	cmd.Flags().StringVar(&addr, "addr", "", "ops address host:port (default: from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}

// probeAddr turns a listen address into one a local client can dial.
func probeAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

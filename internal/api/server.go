// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the ops listener: health, readiness, metrics and a
// read-only view of the running channels.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/nebula/internal/api/middleware"
	"github.com/ManuGH/nebula/internal/health"
	"github.com/ManuGH/nebula/internal/playout"
	"github.com/ManuGH/nebula/internal/rundown"
)

// ChannelView is the read side of a running channel.
type ChannelView interface {
	Stat() playout.Stat
	RecentAsRun(ctx context.Context, limit int) ([]rundown.AsRunEntry, error)
}

// Registry lists and looks up running channels.
type Registry interface {
	Channels() []int
	Lookup(id int) (ChannelView, bool)
}

// Config configures the router.
type Config struct {
	// ServiceName names the otelhttp server; empty disables tracing.
	ServiceName string
	// RateLimit is requests per minute per client IP on channel routes.
	RateLimit     int
	EnableLogging bool
}

// Server routes the ops endpoints.
type Server struct {
	registry Registry
	health   *health.Manager
	router   chi.Router
}

// New builds the ops router.
func New(cfg Config, registry Registry, hm *health.Manager) *Server {
	s := &Server{registry: registry, health: hm}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: cfg.ServiceName,
		EnableLogging:  cfg.EnableLogging,
	})
	r.Get("/healthz", hm.ServeHealth)
	r.Get("/livez", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.OpsRateLimit(cfg.RateLimit))
		r.Get("/channels", s.handleListChannels)
		r.Get("/channels/{id}", s.handleGetChannel)
		r.Get("/channels/{id}/asrun", s.handleAsRun)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SPDX-License-Identifier: MIT

// Package middleware holds the HTTP middleware of the ops listener.
package middleware

import "github.com/go-chi/chi/v5"

// StackConfig configures the ops middleware stack.
type StackConfig struct {
	EnableMetrics bool
	// TracingService names the otelhttp server; empty disables tracing.
	TracingService string
	EnableLogging  bool
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int
}

// NewRouter constructs a chi router with the stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r, outermost first.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(AccessLog)
	}
	if cfg.RateLimit > 0 {
		r.Use(OpsRateLimit(cfg.RateLimit))
	}
}

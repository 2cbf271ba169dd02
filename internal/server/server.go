// Package server implements the HTTP transport layer for the Skygate gateway.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skyward-io/skygate/internal/app"
	"github.com/skyward-io/skygate/internal/ledger"
	"github.com/skyward-io/skygate/internal/provider"
	"github.com/skyward-io/skygate/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Orchestrator   *app.Orchestrator
	Providers      *provider.Registry
	Ledger         *ledger.Ledger
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	Metrics        *telemetry.Metrics // nil = no request metrics
	MetricsHandler http.Handler       // nil = no /metrics endpoint
	AdminKey       string             // empty disables /admin routes
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(instrument(deps.Metrics))
	}

	// System endpoints
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Client-facing API
	r.Route("/v1", func(r chi.Router) {
		r.Get("/weather/{code}", s.handleWeather)
		r.Get("/flights", s.handleFlights)
		r.Get("/positions", s.handlePositions)
		r.Get("/geocode", s.handleGeocode)
	})

	// Operator readout
	r.Group(func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Get("/admin/usage", s.handleAdminUsage)
	})

	return r
}

type server struct {
	deps Deps
}

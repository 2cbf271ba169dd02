package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/skyward-io/skygate/internal/app"
	"github.com/skyward-io/skygate/internal/cache"
	"github.com/skyward-io/skygate/internal/circuitbreaker"
	"github.com/skyward-io/skygate/internal/config"
	"github.com/skyward-io/skygate/internal/ledger"
	"github.com/skyward-io/skygate/internal/provider"
	"github.com/skyward-io/skygate/internal/ratelimit"
	"github.com/skyward-io/skygate/internal/server"
	"github.com/skyward-io/skygate/internal/storage/sqlite"
	"github.com/skyward-io/skygate/internal/telemetry"
	"github.com/skyward-io/skygate/internal/transport"
	"github.com/skyward-io/skygate/internal/worker"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting skygate", "version", version, "addr", cfg.Server.Addr)

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(context.Background(),
			cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	// Metrics
	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// Persistent cache and ledger
	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	led := ledger.New(store, cfg.Budgets())

	// In-process hot layer
	hot, err := cache.NewMemory(cfg.Cache.HotMaxSize, cfg.Freshness.MaxStale)
	if err != nil {
		return err
	}

	// Provider descriptors, pacing and breakers
	registry, err := provider.FromConfig(cfg)
	if err != nil {
		return err
	}

	pacers := ratelimit.NewRegistry()
	for _, p := range cfg.Providers {
		if p.IsEnabled() {
			pacers.Register(p.Name, p.RatePerSec, p.Burst)
		}
	}
	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())

	// Outbound HTTP with cached DNS
	resolver := &dnscache.Resolver{}
	go refreshDNS(resolver)
	client := &http.Client{Transport: transport.NewTransport(resolver)}

	exec := transport.NewExecutor(client, pacers, breakers, led, metrics, cfg.Retry, slog.Default())
	orch := app.NewOrchestrator(store, hot, exec, cfg.Freshness, metrics, slog.Default())

	handler := server.New(server.Deps{
		Orchestrator:   orch,
		Providers:      registry,
		Ledger:         led,
		ReadyCheck:     store.Ping,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		AdminKey:       cfg.Admin.Key,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workers := []worker.Worker{worker.NewUsageReporter(led, metrics, 0)}
	if cfg.Cache.SweepEnabled {
		workers = append(workers, worker.NewJanitor(store, cfg.Freshness, 0))
	}
	runner := worker.NewRunner(workers...)
	workerErrCh := make(chan error, 1)
	go func() { workerErrCh <- runner.Run(workerCtx) }()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("skygate ready", "addr", cfg.Server.Addr, "providers", registry.List())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	case err := <-workerErrCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	stopWorkers()

	slog.Info("skygate stopped")
	return nil
}

// refreshDNS re-resolves cached entries periodically so long-lived
// connections pick up DNS changes.
func refreshDNS(r *dnscache.Resolver) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		r.Refresh(true)
	}
}

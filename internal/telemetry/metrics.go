// Package telemetry provides observability primitives for the Skygate gateway.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the gateway.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	CacheResults     *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	UpstreamAttempts *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec
	UpstreamRetries  *prometheus.CounterVec
	BudgetRejects    *prometheus.CounterVec
	BudgetUsedPct    *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skygate",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "skygate",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "skygate",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		CacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skygate",
			Name:      "cache_results_total",
			Help:      "Cache lookup outcomes by category and result (hit, stale, miss, error).",
		}, []string{"category", "result"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "skygate",
			Name:                            "upstream_duration_seconds",
			Help:                            "Upstream provider call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"provider"}),

		UpstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skygate",
			Name:      "upstream_attempts_total",
			Help:      "Total upstream request attempts, retries included.",
		}, []string{"provider"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skygate",
			Name:      "upstream_errors_total",
			Help:      "Total upstream provider errors.",
		}, []string{"provider", "status"}),

		UpstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skygate",
			Name:      "upstream_retries_total",
			Help:      "Total upstream retry attempts after a retryable failure.",
		}, []string{"provider"}),

		BudgetRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skygate",
			Name:      "budget_rejects_total",
			Help:      "Total upstream calls refused because the daily budget was exhausted.",
		}, []string{"provider"}),

		BudgetUsedPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "skygate",
			Name:      "budget_used_pct",
			Help:      "Share of the daily call budget consumed, in percent.",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.CacheResults,
		m.UpstreamDuration,
		m.UpstreamAttempts,
		m.UpstreamErrors,
		m.UpstreamRetries,
		m.BudgetRejects,
		m.BudgetUsedPct,
	)

	return m
}

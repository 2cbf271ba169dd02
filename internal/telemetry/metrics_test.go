package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.ActiveRequests == nil {
		t.Error("ActiveRequests is nil")
	}
	if m.CacheResults == nil {
		t.Error("CacheResults is nil")
	}
	if m.UpstreamDuration == nil {
		t.Error("UpstreamDuration is nil")
	}
	if m.UpstreamAttempts == nil {
		t.Error("UpstreamAttempts is nil")
	}
	if m.UpstreamErrors == nil {
		t.Error("UpstreamErrors is nil")
	}
	if m.UpstreamRetries == nil {
		t.Error("UpstreamRetries is nil")
	}
	if m.BudgetRejects == nil {
		t.Error("BudgetRejects is nil")
	}
	if m.BudgetUsedPct == nil {
		t.Error("BudgetUsedPct is nil")
	}

	// Verify metrics can be gathered without error.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestNewMetricsIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	// Increment counters and observe histograms to verify they work.
	m.RequestsTotal.WithLabelValues("GET", "/v1/weather/{code}", "200").Inc()
	m.CacheResults.WithLabelValues("weather", "hit").Inc()
	m.CacheResults.WithLabelValues("flight", "stale").Inc()
	m.BudgetRejects.WithLabelValues("aviationstack").Inc()
	m.BudgetUsedPct.WithLabelValues("opensky").Set(42.5)
	m.ActiveRequests.Set(5)
	m.RequestDuration.WithLabelValues("GET", "/v1/weather/{code}").Observe(0.123)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather after increment: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"skygate_requests_total",
		"skygate_cache_results_total",
		"skygate_budget_rejects_total",
		"skygate_budget_used_pct",
		"skygate_active_requests",
		"skygate_request_duration_seconds",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("missing metric %q in gathered families", name)
		}
	}
}

// SetupTracing is not unit-tested because it requires a gRPC connection
// to an OTLP collector, which is integration-test territory.

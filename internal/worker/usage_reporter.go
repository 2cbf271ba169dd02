package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/skyward-io/skygate/internal/ledger"
	"github.com/skyward-io/skygate/internal/telemetry"
)

const defaultReportInterval = 60 * time.Second

// UsageReporter periodically logs per-provider budget consumption and
// publishes it to the budget gauge. Operators watch this series to catch
// a provider burning through its daily quota early.
type UsageReporter struct {
	ledger   *ledger.Ledger
	metrics  *telemetry.Metrics
	interval time.Duration
}

// NewUsageReporter creates a UsageReporter. metrics may be nil; interval
// <= 0 selects the default.
func NewUsageReporter(led *ledger.Ledger, metrics *telemetry.Metrics, interval time.Duration) *UsageReporter {
	if interval <= 0 {
		interval = defaultReportInterval
	}
	return &UsageReporter{ledger: led, metrics: metrics, interval: interval}
}

// Name implements Worker.
func (w *UsageReporter) Name() string { return "usage_reporter" }

// Run reports once at startup, then on every tick until ctx is cancelled.
func (w *UsageReporter) Run(ctx context.Context) error {
	return tick(ctx, w.interval, w.report)
}

func (w *UsageReporter) report(ctx context.Context) {
	snaps, err := w.ledger.Snapshot(ctx)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "usage snapshot failed",
			slog.String("error", err.Error()),
		)
		return
	}
	for _, s := range snaps {
		if s.UsedPct != nil {
			if w.metrics != nil {
				w.metrics.BudgetUsedPct.WithLabelValues(s.Provider).Set(*s.UsedPct)
			}
			slog.LogAttrs(ctx, slog.LevelInfo, "daily usage",
				slog.String("provider", s.Provider),
				slog.Int64("used", s.UsedToday),
				slog.Int64("budget", s.BudgetToday),
				slog.Float64("used_pct", *s.UsedPct),
			)
			continue
		}
		slog.LogAttrs(ctx, slog.LevelInfo, "daily usage",
			slog.String("provider", s.Provider),
			slog.Int64("used", s.UsedToday),
		)
	}
}

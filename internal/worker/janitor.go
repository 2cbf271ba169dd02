package worker

import (
	"context"
	"log/slog"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/config"
	"github.com/skyward-io/skygate/internal/storage"
)

const defaultSweepInterval = time.Hour

// Janitor periodically deletes cache entries past their category's
// serve-stale window. Such rows can never be served again. The sweep is
// opt-in (cache.sweep_enabled); by default entries only age out
// logically and stay on disk.
type Janitor struct {
	store    storage.CacheStore
	fresh    config.FreshnessConfig
	interval time.Duration

	now func() time.Time
}

// NewJanitor creates a Janitor. interval <= 0 selects the default.
func NewJanitor(store storage.CacheStore, fresh config.FreshnessConfig, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Janitor{store: store, fresh: fresh, interval: interval, now: time.Now}
}

// Name implements Worker.
func (w *Janitor) Name() string { return "janitor" }

// Run sweeps once at startup, then on every tick until ctx is cancelled.
func (w *Janitor) Run(ctx context.Context) error {
	return tick(ctx, w.interval, w.sweep)
}

func (w *Janitor) sweep(ctx context.Context) {
	now := w.now()
	for _, cat := range []gateway.Category{gateway.CategoryWeather, gateway.CategoryFlight, gateway.CategoryGeo} {
		cutoff := now.Add(-w.fresh.MaxStale(cat))
		n, err := w.store.DeleteExpired(ctx, cat, cutoff)
		if err != nil {
			slog.LogAttrs(ctx, slog.LevelWarn, "cache sweep failed",
				slog.String("category", string(cat)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if n > 0 {
			slog.LogAttrs(ctx, slog.LevelInfo, "cache swept",
				slog.String("category", string(cat)),
				slog.Int64("deleted", n),
			)
		}
	}
}

// Package ledger tracks and enforces soft daily call budgets per provider.
//
// The ledger is deliberately fail-open: when the backing store errors, a
// provider is assumed under budget so a ledger outage degrades accounting,
// not traffic.
package ledger

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/storage"
)

// Ledger counts outbound calls per provider per UTC day and answers
// budget checks. A budget of zero means unlimited.
type Ledger struct {
	store   storage.UsageStore
	budgets map[string]int64
	now     func() time.Time
}

// New creates a Ledger over the given store with per-provider daily budgets.
func New(store storage.UsageStore, budgets map[string]int64) *Ledger {
	if budgets == nil {
		budgets = map[string]int64{}
	}
	return &Ledger{store: store, budgets: budgets, now: time.Now}
}

// Usage returns the provider's call count for today (UTC). Storage
// failures are logged and reported as zero.
func (l *Ledger) Usage(ctx context.Context, provider string) int64 {
	n, err := l.store.Count(ctx, provider, gateway.DayKey(l.now()))
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "usage read failed, assuming zero",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return 0
	}
	return n
}

// Add atomically increments today's counter for the provider. Failures are
// logged and swallowed: a successful upstream call must not fail because
// the ledger write did.
func (l *Ledger) Add(ctx context.Context, provider string, n int64) {
	if err := l.store.Increment(ctx, provider, gateway.DayKey(l.now()), n); err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "usage ledger write failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
	}
}

// Budget returns the provider's configured daily budget, zero when none.
func (l *Ledger) Budget(provider string) int64 {
	return l.budgets[provider]
}

// UnderBudget reports whether the provider may make another call today.
// Providers without a configured budget are always under budget.
func (l *Ledger) UnderBudget(ctx context.Context, provider string) bool {
	budget := l.budgets[provider]
	if budget <= 0 {
		return true
	}
	return l.Usage(ctx, provider) < budget
}

// Snapshot returns the operator readout for today: one row per provider
// with a configured budget plus any unbudgeted provider that made calls,
// sorted by provider name.
func (l *Ledger) Snapshot(ctx context.Context) ([]gateway.UsageSnapshot, error) {
	day := gateway.DayKey(l.now())
	used, err := l.store.CountsForDay(ctx, day)
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(l.budgets)+len(used))
	for p := range l.budgets {
		names[p] = struct{}{}
	}
	for p := range used {
		names[p] = struct{}{}
	}

	out := make([]gateway.UsageSnapshot, 0, len(names))
	for p := range names {
		snap := gateway.UsageSnapshot{
			Provider:    p,
			UsedToday:   used[p],
			BudgetToday: l.budgets[p],
		}
		if snap.BudgetToday > 0 {
			snap.RemainingToday = max(0, snap.BudgetToday-snap.UsedToday)
			pct := math.Round(float64(snap.UsedToday)/float64(snap.BudgetToday)*1000) / 10
			snap.UsedPct = &pct
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

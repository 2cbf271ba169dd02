package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skyward-io/skygate/internal/testutil"
)

func TestUnderBudget(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	l := New(store, map[string]int64{"opensky": 3})
	ctx := context.Background()

	if !l.UnderBudget(ctx, "opensky") {
		t.Fatal("empty ledger should be under budget")
	}

	l.Add(ctx, "opensky", 3)
	if l.UnderBudget(ctx, "opensky") {
		t.Error("provider at budget should not be under budget")
	}
	if got := l.Usage(ctx, "opensky"); got != 3 {
		t.Errorf("usage = %d, want 3", got)
	}
}

func TestUnderBudget_Unconfigured(t *testing.T) {
	t.Parallel()
	l := New(testutil.NewFakeStore(), nil)
	ctx := context.Background()

	l.Add(ctx, "nominatim", 100000)
	if !l.UnderBudget(ctx, "nominatim") {
		t.Error("provider without a budget must always be under budget")
	}
}

func TestFailOpenOnStorageErrors(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	store.CountErr = errors.New("disk on fire")
	l := New(store, map[string]int64{"aviationstack": 1})
	ctx := context.Background()

	// Reads fail -> assume zero usage -> under budget.
	if !l.UnderBudget(ctx, "aviationstack") {
		t.Error("ledger outage must fail open")
	}
	if got := l.Usage(ctx, "aviationstack"); got != 0 {
		t.Errorf("usage on read failure = %d, want 0", got)
	}

	// Writes fail silently; Add must not panic or surface the error.
	store.IncrementErr = errors.New("still on fire")
	l.Add(ctx, "aviationstack", 1)
}

func TestDayRollover(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	l := New(store, map[string]int64{"openweathermap": 900})

	day1 := time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day1 }
	ctx := context.Background()

	l.Add(ctx, "openweathermap", 900)
	if l.UnderBudget(ctx, "openweathermap") {
		t.Fatal("budget should be exhausted on day 1")
	}

	// Next UTC day: counter implicitly resets via a new row.
	l.now = func() time.Time { return day1.Add(2 * time.Hour) }
	if !l.UnderBudget(ctx, "openweathermap") {
		t.Error("new UTC day should start with a fresh budget")
	}
	if got := l.Usage(ctx, "openweathermap"); got != 0 {
		t.Errorf("usage after rollover = %d, want 0", got)
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	l := New(store, map[string]int64{
		"openweathermap": 900,
		"opensky":        380,
	})
	ctx := context.Background()

	l.Add(ctx, "openweathermap", 450)
	l.Add(ctx, "nominatim", 7) // unbudgeted but active

	snaps, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 3 {
		t.Fatalf("snapshot rows = %d, want 3", len(snaps))
	}
	// Sorted by provider name.
	if snaps[0].Provider != "nominatim" || snaps[1].Provider != "opensky" || snaps[2].Provider != "openweathermap" {
		t.Errorf("unexpected order: %v, %v, %v", snaps[0].Provider, snaps[1].Provider, snaps[2].Provider)
	}

	owm := snaps[2]
	if owm.UsedToday != 450 || owm.BudgetToday != 900 || owm.RemainingToday != 450 {
		t.Errorf("openweathermap snapshot = %+v", owm)
	}
	if owm.UsedPct == nil || *owm.UsedPct != 50.0 {
		t.Errorf("used_pct = %v, want 50.0", owm.UsedPct)
	}

	nom := snaps[0]
	if nom.UsedToday != 7 || nom.BudgetToday != 0 || nom.UsedPct != nil {
		t.Errorf("nominatim snapshot = %+v", nom)
	}

	sky := snaps[1]
	if sky.UsedToday != 0 || sky.RemainingToday != 380 {
		t.Errorf("opensky snapshot = %+v", sky)
	}
}

package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/config"
	"github.com/skyward-io/skygate/internal/ledger"
	"github.com/skyward-io/skygate/internal/testutil"
)

func TestJanitor_SweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	now := time.Now().UTC()

	// Weather max stale is 21600s. One entry is past it, one is not.
	store.Seed(gateway.CacheEntry{
		Category: gateway.CategoryWeather, Key: "KDEN", Provider: "aviationweather",
		Payload: json.RawMessage(`{}`), LastUpdated: now.Add(-30000 * time.Second),
	})
	store.Seed(gateway.CacheEntry{
		Category: gateway.CategoryWeather, Key: "KSFO", Provider: "aviationweather",
		Payload: json.RawMessage(`{}`), LastUpdated: now.Add(-1000 * time.Second),
	})
	// Different category with its own, shorter window (600s for flights).
	store.Seed(gateway.CacheEntry{
		Category: gateway.CategoryFlight, Key: "h1", Provider: "aviationstack",
		Payload: json.RawMessage(`{}`), LastUpdated: now.Add(-1000 * time.Second),
	})

	j := NewJanitor(store, config.FreshnessConfig{}, time.Hour)
	j.now = func() time.Time { return now }
	j.sweep(context.Background())

	ctx := context.Background()
	if _, err := store.GetEntry(ctx, gateway.CategoryWeather, "KDEN", "aviationweather"); err == nil {
		t.Error("entry past max stale should be gone")
	}
	if _, err := store.GetEntry(ctx, gateway.CategoryWeather, "KSFO", "aviationweather"); err != nil {
		t.Error("servable entry must survive the sweep")
	}
	if _, err := store.GetEntry(ctx, gateway.CategoryFlight, "h1", "aviationstack"); err == nil {
		t.Error("flight entry past its shorter window should be gone")
	}
}

func TestJanitor_StopsOnCancel(t *testing.T) {
	t.Parallel()
	j := NewJanitor(testutil.NewFakeStore(), config.FreshnessConfig{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestUsageReporter_StopsOnCancel(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	led := ledger.New(store, map[string]int64{"openweathermap": 900})
	w := NewUsageReporter(led, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop")
	}
}

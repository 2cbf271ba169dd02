// Package storage defines persistence interfaces for the gateway.
package storage

import (
	"context"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
)

// CacheStore persists normalized provider responses.
type CacheStore interface {
	// GetEntry returns the entry for (category, key, provider), or
	// gateway.ErrNotFound when absent. Freshness is the caller's concern;
	// the store returns whatever it has regardless of age.
	GetEntry(ctx context.Context, category gateway.Category, key, provider string) (*gateway.CacheEntry, error)
	// UpsertEntry writes the entry, replacing any existing row for the
	// same (category, key, provider) tuple.
	UpsertEntry(ctx context.Context, e *gateway.CacheEntry) error
	// DeleteExpired removes entries of the category last updated before
	// the cutoff, returning how many rows were deleted.
	DeleteExpired(ctx context.Context, category gateway.Category, before time.Time) (int64, error)
}

// UsageStore persists the per-provider daily call ledger.
type UsageStore interface {
	// Count returns the call count for (provider, day), zero when absent.
	Count(ctx context.Context, provider, day string) (int64, error)
	// Increment atomically adds n to the (provider, day) counter,
	// creating the row when absent. Concurrent increments must all be
	// reflected; implementations may not read-modify-write.
	Increment(ctx context.Context, provider, day string, n int64) error
	// CountsForDay returns all provider counts for one day.
	CountsForDay(ctx context.Context, day string) (map[string]int64, error)
}

// Store combines all storage interfaces.
type Store interface {
	CacheStore
	UsageStore
	Ping(ctx context.Context) error
	Close() error
}

// Package testutil provides configurable test fakes for gateway interfaces.
package testutil

import (
	"context"
	"sync"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
)

type entryKey struct {
	Category gateway.Category
	Key      string
	Provider string
}

type usageKey struct {
	Provider string
	Day      string
}

// FakeStore is an in-memory implementation of storage.Store for testing.
// Error fields, when set, are returned by the corresponding method to
// exercise degraded paths.
type FakeStore struct {
	mu      sync.RWMutex
	entries map[entryKey]gateway.CacheEntry
	usage   map[usageKey]int64

	GetErr       error
	UpsertErr    error
	CountErr     error
	IncrementErr error
	DeleteErr    error

	// call counters for assertions
	Gets    int
	Upserts int
}

// NewFakeStore returns a FakeStore with empty collections.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		entries: make(map[entryKey]gateway.CacheEntry),
		usage:   make(map[usageKey]int64),
	}
}

// Seed inserts a cache entry directly, bypassing error injection.
func (s *FakeStore) Seed(e gateway.CacheEntry) {
	s.mu.Lock()
	s.entries[entryKey{e.Category, e.Key, e.Provider}] = e
	s.mu.Unlock()
}

// --- storage.CacheStore ---

// GetEntry returns the stored entry or gateway.ErrNotFound.
func (s *FakeStore) GetEntry(_ context.Context, category gateway.Category, key, provider string) (*gateway.CacheEntry, error) {
	s.mu.Lock()
	s.Gets++
	s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	s.mu.RLock()
	e, ok := s.entries[entryKey{category, key, provider}]
	s.mu.RUnlock()
	if !ok {
		return nil, gateway.ErrNotFound
	}
	cp := e
	return &cp, nil
}

// UpsertEntry stores the entry keyed by its tuple.
func (s *FakeStore) UpsertEntry(_ context.Context, e *gateway.CacheEntry) error {
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	s.mu.Lock()
	s.Upserts++
	s.entries[entryKey{e.Category, e.Key, e.Provider}] = *e
	s.mu.Unlock()
	return nil
}

// DeleteExpired removes entries of the category older than the cutoff.
func (s *FakeStore) DeleteExpired(_ context.Context, category gateway.Category, before time.Time) (int64, error) {
	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.entries {
		if k.Category == category && e.LastUpdated.Before(before) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// --- storage.UsageStore ---

// Count returns the recorded count for (provider, day).
func (s *FakeStore) Count(_ context.Context, provider, day string) (int64, error) {
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[usageKey{provider, day}], nil
}

// Increment atomically adds n to the (provider, day) counter.
func (s *FakeStore) Increment(_ context.Context, provider, day string, n int64) error {
	if s.IncrementErr != nil {
		return s.IncrementErr
	}
	s.mu.Lock()
	s.usage[usageKey{provider, day}] += n
	s.mu.Unlock()
	return nil
}

// CountsForDay returns all provider counts for one day.
func (s *FakeStore) CountsForDay(_ context.Context, day string) (map[string]int64, error) {
	if s.CountErr != nil {
		return nil, s.CountErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64)
	for k, n := range s.usage {
		if k.Day == day {
			out[k.Provider] = n
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *FakeStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *FakeStore) Close() error { return nil }

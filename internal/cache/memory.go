package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"

	gateway "github.com/skyward-io/skygate/internal"
)

// retention is how long an entry stays in memory past its write. Entries
// older than the category's max-stale window can never be served, so
// keeping them hot is pure waste.
type retention struct {
	expiresAt time.Time
	entry     gateway.CacheEntry
}

// Memory is an in-memory W-TinyLFU cache backed by otter.
type Memory struct {
	cache    *otter.Cache[string, retention]
	maxStale func(gateway.Category) time.Duration
}

// NewMemory creates an in-memory entry cache with the given max entry count.
// maxStale returns the retention window per category; nil falls back to the
// category defaults.
func NewMemory(maxSize int, maxStale func(gateway.Category) time.Duration) (*Memory, error) {
	if maxStale == nil {
		maxStale = func(cat gateway.Category) time.Duration { return cat.DefaultMaxStale() }
	}
	c, err := otter.New[string, retention](&otter.Options[string, retention]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, retention](gateway.CategoryGeo.DefaultMaxStale()),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Memory{cache: c, maxStale: maxStale}, nil
}

// Get retrieves an entry from the cache if present and still retained.
func (m *Memory) Get(_ context.Context, cat gateway.Category, provider, key string) (gateway.CacheEntry, bool) {
	k := entryKey(cat, provider, key)
	r, ok := m.cache.GetIfPresent(k)
	if !ok {
		return gateway.CacheEntry{}, false
	}
	if time.Now().After(r.expiresAt) {
		m.cache.Invalidate(k)
		return gateway.CacheEntry{}, false
	}
	return r.entry, true
}

// Set stores an entry with the category's retention window.
func (m *Memory) Set(_ context.Context, e gateway.CacheEntry) {
	m.cache.Set(entryKey(e.Category, e.Provider, e.Key), retention{
		expiresAt: time.Now().Add(m.maxStale(e.Category)),
		entry:     e,
	})
}

// Delete removes an entry from the cache.
func (m *Memory) Delete(_ context.Context, cat gateway.Category, provider, key string) {
	m.cache.Invalidate(entryKey(cat, provider, key))
}

// Purge removes all entries from the cache.
func (m *Memory) Purge(_ context.Context) {
	m.cache.InvalidateAll()
}

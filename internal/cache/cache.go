// Package cache provides the in-process hot layer in front of the
// persistent cache store. Entries carry their own LastUpdated timestamp,
// so freshness decisions stay with the caller; the hot layer only bounds
// how long an entry is worth keeping in memory at all.
package cache

import (
	"context"
	"strings"

	gateway "github.com/skyward-io/skygate/internal"
)

// HotCache is the interface for the in-memory entry cache.
type HotCache interface {
	// Get retrieves a cached entry.
	Get(ctx context.Context, cat gateway.Category, provider, key string) (gateway.CacheEntry, bool)
	// Set stores an entry. Retention is bounded per category.
	Set(ctx context.Context, e gateway.CacheEntry)
	// Delete removes a cached entry.
	Delete(ctx context.Context, cat gateway.Category, provider, key string)
	// Purge removes all cached entries.
	Purge(ctx context.Context)
}

// entryKey builds the composite lookup key. Category, provider and key
// together identify an entry, mirroring the persistent store's primary key.
func entryKey(cat gateway.Category, provider, key string) string {
	var b strings.Builder
	b.Grow(len(cat) + len(provider) + len(key) + 2)
	b.WriteString(string(cat))
	b.WriteByte('|')
	b.WriteString(provider)
	b.WriteByte('|')
	b.WriteString(key)
	return b.String()
}

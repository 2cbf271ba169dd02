// Package gateway defines domain types for the Skygate provider cache
// gateway. This package has no project imports -- it is the dependency root.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// --- Categories ---

// Category classifies a cached provider response and selects its
// freshness policy and canonical shape.
type Category string

const (
	CategoryWeather Category = "weather"
	CategoryFlight  Category = "flight"
	CategoryGeo     Category = "geo"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryWeather, CategoryFlight, CategoryGeo:
		return true
	}
	return false
}

// DefaultTTL returns the freshness window for the category.
// Flight state changes fastest; geocoding is near-static.
func (c Category) DefaultTTL() time.Duration {
	switch c {
	case CategoryFlight:
		return 90 * time.Second
	case CategoryGeo:
		return 24 * time.Hour
	default:
		return 30 * time.Minute
	}
}

// DefaultMaxStale returns how far beyond the TTL an aged entry may still
// be served when a live fetch is unavailable or over budget.
func (c Category) DefaultMaxStale() time.Duration {
	switch c {
	case CategoryFlight:
		return 10 * time.Minute
	case CategoryGeo:
		return 7 * 24 * time.Hour
	default:
		return 6 * time.Hour
	}
}

// --- Cache ---

// CacheStatus tells the caller how trustworthy the returned data is.
type CacheStatus string

const (
	CacheHit   CacheStatus = "hit"   // fresh, within TTL
	CacheStale CacheStatus = "stale" // aged but served anyway
	CacheMiss  CacheStatus = "miss"  // freshly fetched live
)

// CacheEntry is one cached provider result. At most one entry exists per
// (Category, Key, Provider); writes are upserts on that tuple and entries
// are never physically deleted -- they age out via TTL.
type CacheEntry struct {
	Category    Category        `json:"category"`
	Key         string          `json:"key"`
	Provider    string          `json:"provider"`
	Payload     json.RawMessage `json:"payload"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Age returns the entry's age relative to now.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastUpdated)
}

// ProviderResponse is the value returned to callers for every logical
// query. Err is non-nil only on the fully degraded path (live fetch failed
// and no stale entry existed); Data still carries an explicit error
// payload in that case, never a silent empty success.
type ProviderResponse struct {
	Data     json.RawMessage `json:"data"`
	Provider string          `json:"provider"`
	Status   CacheStatus     `json:"cache"`
	Err      error           `json:"-"`
}

// --- Canonical flight shape ---

// FlightInfo is the provider-agnostic flight payload. Fields a provider
// does not report are nil, never fabricated.
type FlightInfo struct {
	FlightNumber *string         `json:"flightNumber"`
	Airline      *string         `json:"airline"`
	DepIata      *string         `json:"depIata"`
	ArrIata      *string         `json:"arrIata"`
	Status       *string         `json:"status"`
	DepTime      *string         `json:"depTime"`
	ArrTime      *string         `json:"arrTime"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// --- Usage ledger readout ---

// UsageSnapshot is the per-provider readout for the current UTC day.
// UsedPct is nil for providers without a configured budget.
type UsageSnapshot struct {
	Provider       string   `json:"provider"`
	UsedToday      int64    `json:"used_today"`
	BudgetToday    int64    `json:"budget_today"`
	RemainingToday int64    `json:"remaining_today"`
	UsedPct        *float64 `json:"used_pct"`
}

// DayKey formats t as the UTC yyyymmdd ledger day key.
func DayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// --- Cache key derivation ---

// NormalizeCode canonicalizes a single-parameter natural key
// (ICAO/IATA code): trimmed and uppercased.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// StableHash returns the hex SHA-256 of a deterministic serialization of v.
// Strings and byte slices hash as-is; everything else is marshaled with
// encoding/json, which sorts map keys, so equivalent parameter sets map to
// the same cache key regardless of insertion order.
func StableHash(v any) string {
	var b []byte
	switch s := v.(type) {
	case string:
		b = []byte(s)
	case []byte:
		b = s
	default:
		b, _ = json.Marshal(v)
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the request ID from context, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

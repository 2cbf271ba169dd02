// Package app contains the gateway's core services: the cache
// orchestrator that decides between cached, stale and live data for every
// provider query.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/cache"
	"github.com/skyward-io/skygate/internal/config"
	"github.com/skyward-io/skygate/internal/normalize"
	"github.com/skyward-io/skygate/internal/provider"
	"github.com/skyward-io/skygate/internal/storage"
	"github.com/skyward-io/skygate/internal/telemetry"
	"github.com/skyward-io/skygate/internal/transport"
)

// Orchestrator owns the cached-or-fetch decision for provider queries.
// Raw payloads live in the store; normalization runs on every serve so
// hits and misses share a shape.
type Orchestrator struct {
	store   storage.CacheStore
	hot     cache.HotCache
	exec    *transport.Executor
	fresh   config.FreshnessConfig
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	// flights collapses concurrent identical misses into one upstream call.
	flights singleflight.Group

	// now is overridden in tests to rewind the clock.
	now func() time.Time
}

// NewOrchestrator wires an Orchestrator. hot and metrics may be nil.
func NewOrchestrator(store storage.CacheStore, hot cache.HotCache, exec *transport.Executor,
	fresh config.FreshnessConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Orchestrator {

	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:   store,
		hot:     hot,
		exec:    exec,
		fresh:   fresh,
		metrics: metrics,
		logger:  logger,
		tracer:  telemetry.Tracer("skygate/app"),
		now:     time.Now,
	}
}

// Fetch answers a provider query from cache when possible and from the
// network otherwise.
//
// The decision order is fixed: a fresh cached entry wins outright; past
// its TTL the entry stays eligible as a stale fallback up to the
// category's max-stale window. A live fetch runs only when no fresh entry
// exists, and its failure (budget exhausted, breaker open, retries spent,
// terminal upstream status) falls back to stale before surfacing an
// error. The degraded response still carries a JSON error payload and the
// miss status, with Err set so callers can distinguish it from data.
func (o *Orchestrator) Fetch(ctx context.Context, d *provider.Descriptor, q provider.Query) gateway.ProviderResponse {
	key := d.CacheKey(q)
	ctx, span := o.tracer.Start(ctx, "orchestrator.fetch", trace.WithAttributes(
		attribute.String("provider", d.Name),
		attribute.String("category", string(d.Category)),
	))
	defer span.End()

	now := o.now()
	entry, found := o.lookup(ctx, d, key)
	if found && entry.Age(now) < o.fresh.TTL(d.Category) {
		return o.serve(ctx, d, entry.Payload, gateway.CacheHit, nil)
	}

	raw, err := o.fetchLive(ctx, d, q, key)
	if err != nil {
		if found && entry.Age(now) < o.fresh.MaxStale(d.Category) {
			o.logger.LogAttrs(ctx, slog.LevelWarn, "serving stale after fetch failure",
				slog.String("provider", d.Name),
				slog.String("error", err.Error()))
			return o.serve(ctx, d, entry.Payload, gateway.CacheStale, nil)
		}
		return o.serve(ctx, d, errorPayload(err), gateway.CacheMiss, err)
	}

	o.persist(ctx, d, key, raw, now)
	return o.serve(ctx, d, raw, gateway.CacheMiss, nil)
}

// lookup checks the hot layer first, then the persistent store. Store
// errors degrade to a miss: a broken cache must not take queries down.
func (o *Orchestrator) lookup(ctx context.Context, d *provider.Descriptor, key string) (gateway.CacheEntry, bool) {
	if o.hot != nil {
		if e, ok := o.hot.Get(ctx, d.Category, d.Name, key); ok {
			return e, true
		}
	}
	e, err := o.store.GetEntry(ctx, d.Category, key, d.Name)
	if err != nil {
		if !errors.Is(err, gateway.ErrNotFound) {
			o.logger.LogAttrs(ctx, slog.LevelWarn, "cache read failed",
				slog.String("provider", d.Name),
				slog.String("error", err.Error()))
		}
		return gateway.CacheEntry{}, false
	}
	if o.hot != nil {
		o.hot.Set(ctx, *e)
	}
	return *e, true
}

// fetchLive performs the upstream call, deduplicating concurrent
// identical queries through singleflight.
func (o *Orchestrator) fetchLive(ctx context.Context, d *provider.Descriptor, q provider.Query, key string) (json.RawMessage, error) {
	sfKey := string(d.Category) + "|" + d.Name + "|" + key
	v, err, _ := o.flights.Do(sfKey, func() (any, error) {
		res := o.exec.Do(ctx, d.Name, func(ctx context.Context) (*http.Request, error) {
			return d.NewRequest(ctx, q)
		})
		if !res.OK() {
			return nil, res.Err
		}
		return res.Payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// persist upserts the raw payload and refreshes the hot layer. Write
// failures are logged and swallowed: the caller already has the data.
func (o *Orchestrator) persist(ctx context.Context, d *provider.Descriptor, key string, raw json.RawMessage, now time.Time) {
	e := &gateway.CacheEntry{
		Category:    d.Category,
		Key:         key,
		Provider:    d.Name,
		Payload:     raw,
		LastUpdated: now.UTC(),
	}
	if err := o.store.UpsertEntry(ctx, e); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "cache upsert failed",
			slog.String("provider", d.Name),
			slog.String("error", err.Error()))
	}
	if o.hot != nil {
		o.hot.Set(ctx, *e)
	}
}

// serve normalizes the payload and records the outcome.
func (o *Orchestrator) serve(ctx context.Context, d *provider.Descriptor, raw json.RawMessage, status gateway.CacheStatus, fetchErr error) gateway.ProviderResponse {
	result := string(status)
	if fetchErr != nil {
		result = "error"
	}
	if o.metrics != nil {
		o.metrics.CacheResults.WithLabelValues(string(d.Category), result).Inc()
	}

	data, err := normalize.ForCategory(d.Category)(d.Name, raw)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelError, "normalize failed",
			slog.String("provider", d.Name),
			slog.String("error", err.Error()))
		data = errorPayload(err)
		if fetchErr == nil {
			fetchErr = err
		}
	}
	return gateway.ProviderResponse{
		Data:     data,
		Provider: d.Name,
		Status:   status,
		Err:      fetchErr,
	}
}

// errorPayload builds the explicit JSON error document served on the
// fully degraded path.
func errorPayload(err error) json.RawMessage {
	out, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return json.RawMessage(`{"error":"internal"}`)
	}
	return out
}

// Package ratelimit implements per-provider outbound pacing with lazy-refill
// token buckets. A Pacer never rejects a caller: when the bucket is empty it
// blocks for the deficit instead, so it bounds the rate of calls without
// acting as an admission gate.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer is a blocking token bucket with lazy refill (no background goroutine).
type Pacer struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	lastFill time.Time
}

// NewPacer creates a Pacer that allows ratePerSec sustained calls with the
// given burst capacity. Non-positive inputs are clamped to safe minimums.
func NewPacer(ratePerSec, burst float64) *Pacer {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{
		tokens:   burst,
		capacity: burst,
		rate:     ratePerSec,
		lastFill: time.Now(),
	}
}

// refill adds tokens based on elapsed time since last refill. Caller holds mu.
func (p *Pacer) refill(now time.Time) {
	elapsed := now.Sub(p.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	p.tokens = min(p.capacity, p.tokens+elapsed*p.rate)
	p.lastFill = now
}

// Acquire consumes one token, blocking until the bucket can cover it.
// The caller is always let through eventually; the only error is a
// cancelled or expired context while waiting.
func (p *Pacer) Acquire(ctx context.Context) error {
	return p.AcquireN(ctx, 1)
}

// AcquireN consumes cost tokens, blocking for the deficit when needed.
func (p *Pacer) AcquireN(ctx context.Context, cost float64) error {
	p.mu.Lock()
	now := time.Now()
	p.refill(now)
	if p.tokens >= cost {
		p.tokens -= cost
		p.mu.Unlock()
		return nil
	}

	// Not enough tokens: drain the bucket and wait out the deficit.
	// lastFill sits in the future while earlier deficit acquirers hold
	// reservations; new arrivals wait behind those reservations too, so
	// concurrent acquirers queue instead of all waiting one interval.
	pending := max(0, p.lastFill.Sub(now))
	wait := pending + time.Duration((cost-p.tokens)/p.rate*float64(time.Second))
	p.tokens = 0
	p.lastFill = now.Add(wait)
	p.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry holds one Pacer per provider, built once at startup.
// There is no hidden package-level state; the registry is passed by
// reference into whatever performs outbound calls.
type Registry struct {
	mu     sync.Mutex
	pacers map[string]*Pacer
}

// NewRegistry creates an empty pacer registry.
func NewRegistry() *Registry {
	return &Registry{pacers: make(map[string]*Pacer)}
}

// Register installs a pacer for the named provider, replacing any existing one.
func (r *Registry) Register(provider string, ratePerSec, burst float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pacers[provider] = NewPacer(ratePerSec, burst)
}

// Get returns the pacer for the named provider. Unknown providers get a
// conservative default (1 req/s, burst 1) created on first use, so a
// misconfigured provider is throttled rather than unthrottled.
func (r *Registry) Get(provider string) *Pacer {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pacers[provider]
	if !ok {
		p = NewPacer(1, 1)
		r.pacers[provider] = p
	}
	return p
}

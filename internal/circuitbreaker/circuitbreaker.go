// Package circuitbreaker implements a per-provider circuit breaker with a
// sliding-window error rate detector. A consistently failing weather or
// flight provider trips its breaker, so callers fall back to stale cache
// immediately instead of burning retry budget against a dead upstream.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows all requests through.
	StateClosed State = iota
	// StateOpen rejects all requests.
	StateOpen
	// StateHalfOpen allows a single probe request.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate to trip
	MinSamples     int           // minimum requests before breaker can open
	WindowSeconds  int           // sliding window duration in seconds
	OpenTimeout    time.Duration // time in OPEN before transitioning to HALF_OPEN
}

// DefaultConfig returns conservative defaults: providers in this domain
// have small daily budgets, so trip early and probe slowly.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.50,
		MinSamples:     5,
		WindowSeconds:  60,
		OpenTimeout:    30 * time.Second,
	}
}

// slot holds error and request counts for a 1-second window slice.
type slot struct {
	errors float64 // weighted error sum
	total  int
}

// window is a fixed-size ring buffer of 1-second slots.
type window struct {
	slots    [60]slot
	size     int   // active slot count (== WindowSeconds)
	head     int   // index of the current slot
	headTime int64 // unix seconds of the head slot
}

func newWindow(seconds int) window {
	if seconds <= 0 || seconds > 60 {
		seconds = 60
	}
	return window{size: seconds}
}

// advance moves the head to the current second, clearing expired slots.
func (w *window) advance(nowSec int64) {
	if w.headTime == 0 {
		w.headTime = nowSec
		return
	}
	gap := nowSec - w.headTime
	if gap <= 0 {
		return
	}
	for i := range min(int(gap), w.size) {
		w.slots[(w.head+1+i)%w.size] = slot{}
	}
	w.head = (w.head + int(gap)) % w.size
	w.headTime = nowSec
}

func (w *window) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.slots[w.head].total++
	w.slots[w.head].errors += weight
}

func (w *window) errorRate(now time.Time) (rate float64, samples int) {
	w.advance(now.Unix())
	var errs float64
	var total int
	for i := range w.size {
		errs += w.slots[i].errors
		total += w.slots[i].total
	}
	if total == 0 {
		return 0, 0
	}
	return errs / float64(total), total
}

func (w *window) reset() {
	for i := range w.size {
		w.slots[i] = slot{}
	}
	w.head = 0
	w.headTime = 0
}

// Breaker is a per-provider circuit breaker state machine.
type Breaker struct {
	mu          sync.Mutex
	state       State
	window      window
	openedAt    time.Time
	probing     bool // a half-open probe is in flight
	threshold   float64
	minSamples  int
	openTimeout time.Duration
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg Config) *Breaker {
	return &Breaker{
		state:       StateClosed,
		window:      newWindow(cfg.WindowSeconds),
		threshold:   cfg.ErrorThreshold,
		minSamples:  cfg.MinSamples,
		openTimeout: cfg.OpenTimeout,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may proceed. In the open state it
// returns false until OpenTimeout elapses, then admits a single probe.
func (b *Breaker) Allow() bool {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) >= b.openTimeout {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			return true
		}
		return false
	}
	return false
}

// RecordSuccess records a successful request outcome. A successful
// half-open probe closes the breaker and clears the window.
func (b *Breaker) RecordSuccess() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.record(0, now)

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probing = false
		b.window.reset()
	}
}

// RecordError records a failed request with the given error weight.
func (b *Breaker) RecordError(weight float64) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.record(weight, now)

	switch b.state {
	case StateClosed:
		rate, samples := b.window.errorRate(now)
		if samples >= b.minSamples && rate >= b.threshold {
			b.state = StateOpen
			b.openedAt = now
		}
	case StateHalfOpen:
		// Probe failed: reopen and restart the timeout.
		b.state = StateOpen
		b.openedAt = now
		b.probing = false
	}
}

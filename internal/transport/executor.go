package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/circuitbreaker"
	"github.com/skyward-io/skygate/internal/config"
	"github.com/skyward-io/skygate/internal/ledger"
	"github.com/skyward-io/skygate/internal/ratelimit"
	"github.com/skyward-io/skygate/internal/telemetry"
)

// ErrCircuitOpen is returned when a provider's circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker open")

// maxJitter is added to every backoff sleep to spread out retry bursts.
const maxJitter = 250 * time.Millisecond

// Outcome tags the result of an upstream call attempt sequence.
type Outcome int

const (
	// OutcomeOK means a 2xx response was received and decoded.
	OutcomeOK Outcome = iota
	// OutcomeBudgetExhausted means the call was refused before any network
	// activity because the provider's daily budget is spent.
	OutcomeBudgetExhausted
	// OutcomeUpstreamError means the provider answered with a terminal
	// non-2xx status, or the breaker refused the call.
	OutcomeUpstreamError
	// OutcomeExhausted means every retry attempt failed.
	OutcomeExhausted
)

// Result is the outcome of Executor.Do. Exactly one shape applies per
// outcome: OK carries Payload, the failure outcomes carry Err and, for
// upstream errors, the HTTP status.
type Result struct {
	Outcome Outcome
	Payload json.RawMessage
	Status  int
	Err     error
}

// OK reports whether the call produced a usable payload.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

// Executor performs budget-gated, paced, breaker-protected upstream calls.
type Executor struct {
	client   *http.Client
	pacers   *ratelimit.Registry
	breakers *circuitbreaker.Registry
	ledger   *ledger.Ledger
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	maxRetries  int
	timeout     time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an Executor. metrics may be nil.
func NewExecutor(client *http.Client, pacers *ratelimit.Registry, breakers *circuitbreaker.Registry,
	led *ledger.Ledger, metrics *telemetry.Metrics, cfg config.RetryConfig, logger *slog.Logger) *Executor {

	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		client:      client,
		pacers:      pacers,
		breakers:    breakers,
		ledger:      led,
		metrics:     metrics,
		logger:      logger,
		maxRetries:  cfg.MaxRetries,
		timeout:     cfg.Timeout,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		sleep:       sleepCtx,
	}
	if e.maxRetries <= 0 {
		e.maxRetries = 3
	}
	if e.timeout <= 0 {
		e.timeout = 10 * time.Second
	}
	if e.backoffBase <= 0 {
		e.backoffBase = time.Second
	}
	if e.backoffCap <= 0 {
		e.backoffCap = 16 * time.Second
	}
	return e
}

// Do performs an upstream call for the named provider. newReq builds the
// request; it runs after the budget gate so descriptors that resolve
// credentials over the network (OAuth token fetches) make no network
// activity for an over-budget call.
//
// The daily budget is checked once, before anything else. Each attempt
// waits for the provider's pacer and asks its circuit breaker for
// admission. Responses with status 429 or 5xx and transport-level errors
// are retried with exponential backoff starting at the base delay and
// doubling up to the cap, plus a small random jitter; the delay sequence
// restarts on every call. Any other non-2xx status ends the call
// immediately. Usage is recorded only for 2xx responses.
func (e *Executor) Do(ctx context.Context, provider string, newReq func(context.Context) (*http.Request, error)) Result {
	if !e.ledger.UnderBudget(ctx, provider) {
		if e.metrics != nil {
			e.metrics.BudgetRejects.WithLabelValues(provider).Inc()
		}
		e.logger.LogAttrs(ctx, slog.LevelWarn, "budget exhausted",
			slog.String("provider", provider))
		return Result{Outcome: OutcomeBudgetExhausted, Err: gateway.ErrBudgetExhausted}
	}

	req, err := newReq(ctx)
	if err != nil {
		return Result{
			Outcome: OutcomeUpstreamError,
			Err:     fmt.Errorf("%s: build request: %w", provider, err),
		}
	}

	breaker := e.breakers.Get(provider)
	backoff := e.backoffBase
	var lastErr error

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			if e.metrics != nil {
				e.metrics.UpstreamRetries.WithLabelValues(provider).Inc()
			}
			delay := backoff + time.Duration(rand.Int64N(int64(maxJitter)))
			if err := e.sleep(ctx, delay); err != nil {
				return Result{Outcome: OutcomeExhausted, Err: err}
			}
			backoff = min(backoff*2, e.backoffCap)
		}

		if !breaker.Allow() {
			return Result{
				Outcome: OutcomeUpstreamError,
				Err:     fmt.Errorf("%s: %w", provider, ErrCircuitOpen),
			}
		}

		if err := e.pacers.Get(provider).Acquire(ctx); err != nil {
			return Result{Outcome: OutcomeExhausted, Err: fmt.Errorf("pacing wait: %w", err)}
		}

		res, retryable := e.attempt(ctx, provider, breaker, req)
		if res.Outcome == OutcomeOK || !retryable {
			return res
		}
		lastErr = res.Err
		e.logger.LogAttrs(ctx, slog.LevelWarn, "upstream attempt failed",
			slog.String("provider", provider),
			slog.Int("attempt", attempt+1),
			slog.String("error", res.Err.Error()))
	}

	return Result{
		Outcome: OutcomeExhausted,
		Err:     fmt.Errorf("%s after %d attempts: %w (last: %w)", provider, e.maxRetries, gateway.ErrNetworkExhausted, lastErr),
	}
}

// attempt performs a single paced HTTP round trip. retryable reports
// whether the failure is worth another attempt.
func (e *Executor) attempt(ctx context.Context, provider string, breaker *circuitbreaker.Breaker, req *http.Request) (res Result, retryable bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.metrics != nil {
		e.metrics.UpstreamAttempts.WithLabelValues(provider).Inc()
	}
	start := time.Now()
	resp, err := e.client.Do(req.Clone(attemptCtx))
	if e.metrics != nil {
		e.metrics.UpstreamDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		breaker.RecordError(circuitbreaker.ClassifyError(err))
		e.countError(provider, "transport")
		return Result{Outcome: OutcomeUpstreamError, Err: fmt.Errorf("%s: %w", provider, err)}, true
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		breaker.RecordSuccess()
		payload, err := decodePayload(resp.Body)
		if err != nil {
			return Result{Outcome: OutcomeUpstreamError, Status: resp.StatusCode,
				Err: fmt.Errorf("%s: read body: %w", provider, err)}, false
		}
		// Usage counts completed calls only. Best effort by design of the
		// ledger: a failed increment never fails the request.
		e.ledger.Add(ctx, provider, 1)
		return Result{Outcome: OutcomeOK, Status: resp.StatusCode, Payload: payload}, false
	}

	serr := parseStatusError(provider, resp)
	breaker.RecordError(circuitbreaker.ClassifyError(serr))
	e.countError(provider, fmt.Sprintf("%d", resp.StatusCode))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Result{Outcome: OutcomeUpstreamError, Status: resp.StatusCode, Err: serr}, true
	}
	return Result{Outcome: OutcomeUpstreamError, Status: resp.StatusCode, Err: serr}, false
}

func (e *Executor) countError(provider, status string) {
	if e.metrics != nil {
		e.metrics.UpstreamErrors.WithLabelValues(provider, status).Inc()
	}
}

// decodePayload returns the body as raw JSON. Non-JSON bodies are wrapped
// as {"text": "..."} so callers always receive a JSON document.
func decodePayload(body io.Reader) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if json.Valid(data) {
		return json.RawMessage(data), nil
	}
	wrapped, err := json.Marshal(map[string]string{"text": string(data)})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(wrapped), nil
}

// maxBodyBytes caps upstream response bodies at 4MB.
const maxBodyBytes = 4 << 20

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/circuitbreaker"
	"github.com/skyward-io/skygate/internal/config"
	"github.com/skyward-io/skygate/internal/ledger"
	"github.com/skyward-io/skygate/internal/ratelimit"
	"github.com/skyward-io/skygate/internal/testutil"
)

// testExecutor wires an Executor around a scripted transport with fast
// pacing and recorded (not slept) backoff delays.
func testExecutor(t *testing.T, script *testutil.ScriptedTransport, budgets map[string]int64) (*Executor, *testutil.FakeStore, *[]time.Duration) {
	t.Helper()

	store := testutil.NewFakeStore()
	led := ledger.New(store, budgets)
	pacers := ratelimit.NewRegistry()
	pacers.Register("testprov", 1000, 1000)
	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		ErrorThreshold: 0.99,
		MinSamples:     1000, // keep the breaker out of retry tests
		WindowSeconds:  60,
		OpenTimeout:    time.Minute,
	})

	e := NewExecutor(&http.Client{Transport: script}, pacers, breakers, led, nil,
		config.RetryConfig{MaxRetries: 3, Timeout: time.Second, BackoffBase: time.Second, BackoffCap: 4 * time.Second}, nil)

	var delays []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return e, store, &delays
}

func newGet(t *testing.T) func(context.Context) (*http.Request, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/data", nil)
	if err != nil {
		t.Fatal(err)
	}
	return func(context.Context) (*http.Request, error) {
		return req, nil
	}
}

func TestExecutor_Success(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 200, Body: `{"temp": 21}`})
	e, store, _ := testExecutor(t, script, nil)

	res := e.Do(context.Background(), "testprov", newGet(t))
	if !res.OK() {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if string(res.Payload) != `{"temp": 21}` {
		t.Errorf("payload = %s", res.Payload)
	}
	if script.Calls() != 1 {
		t.Errorf("calls = %d, want 1", script.Calls())
	}

	// Usage is recorded for the completed call.
	n, _ := store.Count(context.Background(), "testprov", gateway.DayKey(time.Now()))
	if n != 1 {
		t.Errorf("usage = %d, want 1", n)
	}
}

func TestExecutor_NonJSONBodyWrapped(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 200, Body: "plain metar text"})
	e, _, _ := testExecutor(t, script, nil)

	res := e.Do(context.Background(), "testprov", newGet(t))
	if !res.OK() {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if string(res.Payload) != `{"text":"plain metar text"}` {
		t.Errorf("payload = %s", res.Payload)
	}
}

func TestExecutor_BudgetGate(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 200, Body: `{}`})
	e, store, _ := testExecutor(t, script, map[string]int64{"testprov": 2})

	ctx := context.Background()
	day := gateway.DayKey(time.Now())
	if err := store.Increment(ctx, "testprov", day, 2); err != nil {
		t.Fatal(err)
	}

	res := e.Do(ctx, "testprov", newGet(t))
	if res.Outcome != OutcomeBudgetExhausted {
		t.Fatalf("outcome = %v, want budget exhausted", res.Outcome)
	}
	if !errors.Is(res.Err, gateway.ErrBudgetExhausted) {
		t.Errorf("err = %v", res.Err)
	}
	if script.Calls() != 0 {
		t.Error("no network call may happen once the budget is spent")
	}
}

func TestExecutor_BudgetGateSkipsRequestBuild(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 200, Body: `{}`})
	e, store, _ := testExecutor(t, script, map[string]int64{"testprov": 1})

	ctx := context.Background()
	if err := store.Increment(ctx, "testprov", gateway.DayKey(time.Now()), 1); err != nil {
		t.Fatal(err)
	}

	// Request construction may itself reach the network (OAuth token
	// fetch), so an over-budget call must never invoke the builder.
	built := false
	res := e.Do(ctx, "testprov", func(context.Context) (*http.Request, error) {
		built = true
		return nil, nil
	})
	if res.Outcome != OutcomeBudgetExhausted {
		t.Fatalf("outcome = %v, want budget exhausted", res.Outcome)
	}
	if built {
		t.Error("request builder ran for an over-budget call")
	}
}

func TestExecutor_RequestBuildError(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 200, Body: `{}`})
	e, _, _ := testExecutor(t, script, nil)

	buildErr := errors.New("token endpoint unreachable")
	res := e.Do(context.Background(), "testprov", func(context.Context) (*http.Request, error) {
		return nil, buildErr
	})
	if res.Outcome != OutcomeUpstreamError {
		t.Fatalf("outcome = %v, want upstream error", res.Outcome)
	}
	if !errors.Is(res.Err, buildErr) {
		t.Errorf("err = %v", res.Err)
	}
	if script.Calls() != 0 {
		t.Error("no upstream call may happen when the request cannot be built")
	}
}

func TestExecutor_AttemptCountMatchesConfig(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 500, Body: "boom"})
	e, _, delays := testExecutor(t, script, nil)
	e.maxRetries = 2

	res := e.Do(context.Background(), "testprov", newGet(t))
	if res.Outcome != OutcomeExhausted {
		t.Fatalf("outcome = %v, want exhausted", res.Outcome)
	}
	// Two attempts total, with a single backoff sleep between them.
	if script.Calls() != 2 {
		t.Errorf("calls = %d, want 2", script.Calls())
	}
	if len(*delays) != 1 {
		t.Errorf("delays = %v, want one backoff sleep", *delays)
	}
}

func TestExecutor_RetriesServerErrorThenSucceeds(t *testing.T) {
	t.Parallel()
	script := testutil.Script(
		testutil.Reply{Status: 503, Body: "unavailable"},
		testutil.Reply{Status: 200, Body: `{"ok":true}`},
	)
	e, _, delays := testExecutor(t, script, nil)

	res := e.Do(context.Background(), "testprov", newGet(t))
	if !res.OK() {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if script.Calls() != 2 {
		t.Errorf("calls = %d, want 2", script.Calls())
	}
	if len(*delays) != 1 {
		t.Fatalf("delays = %v, want one backoff sleep", *delays)
	}
	d := (*delays)[0]
	if d < time.Second || d > time.Second+maxJitter {
		t.Errorf("first backoff = %v, want base plus jitter", d)
	}
}

func TestExecutor_BackoffDoublesAndResets(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 500, Body: "boom"})
	e, _, delays := testExecutor(t, script, nil)

	ctx := context.Background()
	res := e.Do(ctx, "testprov", newGet(t))
	if res.Outcome != OutcomeExhausted {
		t.Fatalf("outcome = %v, want exhausted", res.Outcome)
	}
	if !errors.Is(res.Err, gateway.ErrNetworkExhausted) {
		t.Errorf("err = %v", res.Err)
	}
	// MaxRetries 3 is three attempts in total, not three retries.
	if script.Calls() != 3 {
		t.Errorf("calls = %d, want 3", script.Calls())
	}
	if len(*delays) != 2 {
		t.Fatalf("delays = %v", *delays)
	}
	if d := (*delays)[0]; d < time.Second || d > time.Second+maxJitter {
		t.Errorf("first backoff = %v", d)
	}
	if d := (*delays)[1]; d < 2*time.Second || d > 2*time.Second+maxJitter {
		t.Errorf("second backoff = %v", d)
	}

	// A fresh call starts over at the base delay.
	*delays = nil
	_ = e.Do(ctx, "testprov", newGet(t))
	if d := (*delays)[0]; d < time.Second || d > time.Second+maxJitter {
		t.Errorf("backoff did not reset between calls: %v", d)
	}
}

func TestExecutor_ClientErrorIsTerminal(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 404, Body: "no such station"})
	e, store, _ := testExecutor(t, script, nil)

	res := e.Do(context.Background(), "testprov", newGet(t))
	if res.Outcome != OutcomeUpstreamError {
		t.Fatalf("outcome = %v, want upstream error", res.Outcome)
	}
	if res.Status != 404 {
		t.Errorf("status = %d", res.Status)
	}
	var serr *StatusError
	if !errors.As(res.Err, &serr) || serr.StatusCode != 404 {
		t.Errorf("err = %v, want StatusError 404", res.Err)
	}
	if script.Calls() != 1 {
		t.Errorf("calls = %d, 4xx must not be retried", script.Calls())
	}

	// Failed calls never count against the budget.
	n, _ := store.Count(context.Background(), "testprov", gateway.DayKey(time.Now()))
	if n != 0 {
		t.Errorf("usage = %d, want 0", n)
	}
}

func TestExecutor_TransportErrorRetried(t *testing.T) {
	t.Parallel()
	script := testutil.Script(
		testutil.Reply{Err: errors.New("connection reset")},
		testutil.Reply{Status: 200, Body: `{}`},
	)
	e, _, _ := testExecutor(t, script, nil)

	res := e.Do(context.Background(), "testprov", newGet(t))
	if !res.OK() {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if script.Calls() != 2 {
		t.Errorf("calls = %d, want 2", script.Calls())
	}
}

func TestExecutor_OpenBreakerRejects(t *testing.T) {
	t.Parallel()
	script := testutil.Script(testutil.Reply{Status: 200, Body: `{}`})

	store := testutil.NewFakeStore()
	led := ledger.New(store, nil)
	pacers := ratelimit.NewRegistry()
	pacers.Register("testprov", 1000, 1000)
	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		ErrorThreshold: 0.5,
		MinSamples:     1,
		WindowSeconds:  60,
		OpenTimeout:    time.Minute,
	})
	breakers.Get("testprov").RecordError(1.0) // trips immediately

	e := NewExecutor(&http.Client{Transport: script}, pacers, breakers, led, nil,
		config.RetryConfig{MaxRetries: 2, Timeout: time.Second, BackoffBase: time.Second, BackoffCap: 4 * time.Second}, nil)

	res := e.Do(context.Background(), "testprov", newGet(t))
	if res.Outcome != OutcomeUpstreamError {
		t.Fatalf("outcome = %v, want upstream error", res.Outcome)
	}
	if !errors.Is(res.Err, ErrCircuitOpen) {
		t.Errorf("err = %v", res.Err)
	}
	if script.Calls() != 0 {
		t.Error("open breaker must prevent the network call")
	}
}

package circuitbreaker

import (
	"context"
	"errors"
	"net"
	"os"
)

// statusError is an interface for errors carrying an upstream HTTP status.
// Matches transport.StatusError without importing it.
type statusError interface {
	HTTPStatus() int
}

// ClassifyError returns the error weight for circuit breaker tracking.
//
// Weights:
//   - 429 (rate limited) -> 0.5
//   - 500..504 -> 1.0
//   - timeout (deadline exceeded) -> 1.5
//   - other 4xx -> 0.0 (our request's fault, not the provider's)
//   - network errors (non-timeout) -> 1.0
//   - nil -> 0.0
func ClassifyError(err error) float64 {
	if err == nil {
		return 0
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return 1.5
	}

	var se statusError
	if errors.As(err, &se) {
		return classifyStatus(se.HTTPStatus())
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return 1.0
	}

	// Generic errors (e.g. connection refused) count as provider fault.
	return 1.0
}

func classifyStatus(code int) float64 {
	switch {
	case code == 429:
		return 0.5
	case code >= 500 && code <= 504:
		return 1.0
	default:
		return 0.0
	}
}

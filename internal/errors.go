package gateway

import "errors"

// Sentinel errors for the gateway domain.
var (
	ErrBudgetExhausted  = errors.New("daily budget exhausted")
	ErrNetworkExhausted = errors.New("retries exhausted")
	ErrNoData           = errors.New("no data available")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
)

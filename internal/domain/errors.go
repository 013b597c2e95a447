package domain

import (
	"errors"
	"fmt"
)

// ErrRuleUnavailable means the trading rule for a symbol could not be
// fetched. Callers must skip the trade; falling back to a default rule would
// submit orders with the wrong precision.
var ErrRuleUnavailable = errors.New("trading rule unavailable")

// ValidationError is a deterministic pre-submission failure (quantization,
// notional, balance). It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// TransientError wraps a network or venue-side failure that may succeed on
// retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// RejectionError is a definitive rejection by the venue. The trade is
// abandoned and no position is created.
type RejectionError struct {
	Code    int64
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("exchange rejected order (code %d): %s", e.Code, e.Message)
}

// IsTransient reports whether err should be retried under the executor's
// retry policy.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

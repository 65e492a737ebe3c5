package acquire

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted is returned when every attempt of a request failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// TransportError wraps a failure to obtain any response: connection resets,
// TLS failures, truncated bodies, timeouts or proxy errors.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError wraps a response body that is not valid JSON.
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RetryPolicy allows MaxRetry retries after the first attempt.
type RetryPolicy struct {
	MaxRetry int
}

// Attempts returns the total number of attempts the policy allows.
func (p RetryPolicy) Attempts() int {
	return max(p.MaxRetry, 0) + 1
}

// ShouldRetry reports whether attempt (zero-based) may be followed by
// another one after failing with err.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt+1 >= p.Attempts() {
		return false
	}
	var te *TransportError
	var de *DecodeError
	return errors.As(err, &te) || errors.As(err, &de)
}

package clients

import (
	"errors"
	"fmt"
)

// TransientFetchError wraps a transport or retryable-HTTP failure that
// survived the bounded retry policy. It aborts the current sync pass;
// the high-water mark stays untouched so the next pass re-covers the
// window.
type TransientFetchError struct {
	Operation  string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed after %d attempts (status %d): %v", e.Operation, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientFetchError.
func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

// MalformedResponseError indicates an upstream payload that could not be
// decoded or violates the expected shape. The affected order is skipped
// and counted; it never fails a whole pass.
type MalformedResponseError struct {
	Operation string
	Err       error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Operation, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is a MalformedResponseError.
func IsMalformed(err error) bool {
	var m *MalformedResponseError
	return errors.As(err, &m)
}

// ErrCircuitOpen is returned while the circuit breaker is refusing
// requests after repeated upstream failures.
var ErrCircuitOpen = errors.New("upstream circuit breaker is open")

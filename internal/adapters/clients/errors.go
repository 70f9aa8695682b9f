// Package clients provides the instrumented HTTP client used for the remote
// quote service.
package clients

import (
	"errors"
	"fmt"
)

// Infrastructure failures. The acl package translates them into domain errors.
var (
	// ErrCircuitOpen is returned while the circuit breaker is blocking requests.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last attempt's error.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrBodyNotRewindable is returned when a retry needs a body that cannot be re-read.
	ErrBodyNotRewindable = errors.New("request body cannot be replayed")
)

// StatusError is a retryable server response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: %d", e.StatusCode)
}

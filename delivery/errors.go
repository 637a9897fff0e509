package delivery

import (
	"errors"
	"fmt"
)

// CircuitOpenError is returned when the breaker refuses a call. The
// rejected call is not counted in Attempts.
type CircuitOpenError struct {
	Key      string
	Attempts int
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("delivery: circuit open for %q", e.Key)
}

// RetryExhaustedError is returned when every permitted attempt failed or a
// response was not retryable. StatusCode is 0 when the last failure was a
// transport error.
type RetryExhaustedError struct {
	LastError  string
	StatusCode int
	Body       any
	Attempts   int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("delivery: gave up after %d attempt(s): %s", e.Attempts, e.LastError)
}

// AbortedError is returned when the caller's context ends mid-delivery.
type AbortedError struct {
	Attempts int
	Err      error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("delivery: aborted after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AbortedError) Unwrap() error { return e.Err }

// Attempts reports how many calls were made before err was returned.
func Attempts(err error) int {
	var (
		open    *CircuitOpenError
		exhaust *RetryExhaustedError
		abort   *AbortedError
	)
	switch {
	case errors.As(err, &exhaust):
		return exhaust.Attempts
	case errors.As(err, &open):
		return open.Attempts
	case errors.As(err, &abort):
		return abort.Attempts
	default:
		return 0
	}
}

package retry

// Decision is the outcome of evaluating one delivery attempt.
type Decision int

const (
	// Delivered means the target accepted the call (status below 400).
	Delivered Decision = iota

	// Retry means another attempt should follow after the backoff.
	Retry

	// Exhausted means no further attempt will be made.
	Exhausted
)

func (d Decision) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Retry:
		return "retry"
	default:
		return "exhausted"
	}
}

// Decide determines what follows an attempt.
//
// Decision matrix:
//   - transport error → Retry while attempts remain, else Exhausted
//   - status < 400 → Delivered
//   - 429, 5xx → Retry while attempts remain, else Exhausted
//   - other 4xx → Exhausted (client errors will not self-correct)
func Decide(status int, transportErr error, attempt, maxAttempts int) Decision {
	if transportErr == nil && status < 400 {
		return Delivered
	}
	if transportErr == nil && !ShouldRetry(status) {
		return Exhausted
	}
	if attempt < maxAttempts {
		return Retry
	}
	return Exhausted
}

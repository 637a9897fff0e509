// Package retry computes backoff delays and retry eligibility for delivery
// attempts.
package retry

import (
	"math"
	"time"
)

// Lower bounds applied by Normalize.
const (
	MinAttempts = 1
	MinDelaySec = 0.01
)

const (
	DefaultMaxAttempts  = 3
	DefaultBaseDelaySec = 0.25
	DefaultMaxDelaySec  = 2.0
)

// Policy configures how often and how patiently a delivery is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelaySec is the backoff after the first failed attempt.
	BaseDelaySec float64 `json:"base_delay_sec" yaml:"base_delay_sec"`

	// MaxDelaySec caps the exponential backoff.
	MaxDelaySec float64 `json:"max_delay_sec" yaml:"max_delay_sec"`
}

// DefaultPolicy returns 3 attempts with a 0.25s base delay capped at 2s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelaySec: DefaultBaseDelaySec, MaxDelaySec: DefaultMaxDelaySec}
}

// Normalize clamps every field to its lower bound.
func (p Policy) Normalize() Policy {
	p.MaxAttempts = max(p.MaxAttempts, MinAttempts)
	p.BaseDelaySec = math.Max(p.BaseDelaySec, MinDelaySec)
	p.MaxDelaySec = math.Max(p.MaxDelaySec, MinDelaySec)
	return p
}

// BackoffSeconds returns min(base * 2^(attempt-1), max) for a 1-indexed
// attempt.
func BackoffSeconds(p Policy, attempt int) float64 {
	if attempt < 1 {
		attempt = 1
	}
	return math.Min(p.BaseDelaySec*math.Pow(2, float64(attempt-1)), p.MaxDelaySec)
}

// Backoff is BackoffSeconds as a duration.
func (p Policy) Backoff(attempt int) time.Duration {
	return time.Duration(BackoffSeconds(p, attempt) * float64(time.Second))
}

// ShouldRetry reports whether a response status is worth another attempt:
// 429 and every 5xx are.
func ShouldRetry(status int) bool {
	return status == 429 || status >= 500
}

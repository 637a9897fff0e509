// Package circuit implements a per-key circuit breaker that stops calls to a
// persistently failing target for a cooldown period.
package circuit

import (
	"math"
	"sync"
	"time"
)

// State is the position of one key in the breaker state machine.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Lower bounds applied by Config.Normalize.
const (
	MinFailureThreshold = 1
	MinRecoverySec      = 0.1
)

// Config configures when a key opens and how long it stays open.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeoutSec is how long an open circuit rejects calls before
	// admitting a trial call.
	RecoveryTimeoutSec float64 `json:"recovery_timeout_sec" yaml:"recovery_timeout_sec"`
}

// DefaultConfig opens after 3 failures and admits a trial call after 5 seconds.
func DefaultConfig() Config {
	return Config{FailureThreshold: 3, RecoveryTimeoutSec: 5.0}
}

// Normalize clamps both fields to their lower bounds.
func (c Config) Normalize() Config {
	c.FailureThreshold = max(c.FailureThreshold, MinFailureThreshold)
	c.RecoveryTimeoutSec = math.Max(c.RecoveryTimeoutSec, MinRecoverySec)
	return c
}

// RecoveryTimeout returns RecoveryTimeoutSec as a duration.
func (c Config) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSec * float64(time.Second))
}

// Snapshot is a read-only copy of one key's state.
type Snapshot struct {
	Key      string     `json:"key"`
	State    State      `json:"state"`
	Failures int        `json:"failures"`
	OpenedAt *time.Time `json:"opened_at,omitempty"`
}

type entry struct {
	state    State
	failures int
	openedAt time.Time
	// trialAt is when the current HALF_OPEN trial call was admitted.
	trialAt time.Time
}

// Breaker tracks circuit state per key. It is safe for concurrent use.
//
// HALF_OPEN admits exactly one trial call. Further calls are rejected until
// it reports through RecordSuccess or RecordFailure, or until it has been
// outstanding for a full recovery timeout.
type Breaker struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces the breaker's time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a breaker with every key CLOSED.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call for key may proceed. An OPEN key whose
// recovery timeout has elapsed moves to HALF_OPEN and admits this call as
// the trial call.
func (b *Breaker) Allow(key string, recovery time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(key)
	now := b.now()

	switch e.state {
	case StateOpen:
		if e.openedAt.IsZero() || now.Sub(e.openedAt) < recovery {
			return false
		}
		e.state = StateHalfOpen
		e.trialAt = now
		return true
	case StateHalfOpen:
		if now.Sub(e.trialAt) < recovery {
			return false
		}
		e.trialAt = now
		return true
	default:
		return true
	}
}

// RecordSuccess closes the circuit for key and clears its failure count.
func (b *Breaker) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(key)
	e.state = StateClosed
	e.failures = 0
	e.openedAt = time.Time{}
	e.trialAt = time.Time{}
}

// RecordFailure counts a failure for key and opens the circuit once the
// count reaches threshold.
func (b *Breaker) RecordFailure(key string, threshold int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(key)
	e.failures++
	e.trialAt = time.Time{}

	if e.failures >= threshold {
		e.state = StateOpen
		e.openedAt = b.now()
	} else if e.state == StateHalfOpen {
		// A failed trial call below threshold returns to CLOSED counting.
		e.state = StateClosed
	}
}

// Snapshot returns the current state of key without creating it.
func (b *Breaker) Snapshot(key string) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{Key: key, State: StateClosed}

	e, ok := b.entries[key]
	if !ok {
		return s
	}

	s.State = e.state
	s.Failures = e.failures
	if !e.openedAt.IsZero() {
		t := e.openedAt
		s.OpenedAt = &t
	}
	return s
}

// Reset forgets all state for key.
func (b *Breaker) Reset(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
}

func (b *Breaker) get(key string) *entry {
	e, ok := b.entries[key]
	if !ok {
		e = &entry{state: StateClosed}
		b.entries[key] = e
	}
	return e
}

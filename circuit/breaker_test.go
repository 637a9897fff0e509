package circuit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/xraph/conduit/circuit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBreaker() (*circuit.Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return circuit.New(circuit.WithClock(clock.Now)), clock
}

func TestBreakerLifecycle(t *testing.T) {
	b, clock := newBreaker()
	const key = "billing-api"
	recovery := 5 * time.Second

	if !b.Allow(key, recovery) {
		t.Fatal("fresh key should be CLOSED and allow calls")
	}

	for i := 0; i < 3; i++ {
		b.RecordFailure(key, 3)
	}
	if s := b.Snapshot(key); s.State != circuit.StateOpen || s.Failures != 3 {
		t.Fatalf("after 3 failures: %+v, want OPEN with 3 failures", s)
	}
	if b.Allow(key, recovery) {
		t.Fatal("OPEN circuit should reject immediately")
	}

	clock.Advance(recovery)
	if !b.Allow(key, recovery) {
		t.Fatal("circuit should admit a trial call after the recovery timeout")
	}
	if s := b.Snapshot(key); s.State != circuit.StateHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN", s.State)
	}

	b.RecordSuccess(key)
	s := b.Snapshot(key)
	if s.State != circuit.StateClosed || s.Failures != 0 || s.OpenedAt != nil {
		t.Fatalf("after success: %+v, want CLOSED with 0 failures", s)
	}
}

func TestBreakerSingleTrialCall(t *testing.T) {
	b, clock := newBreaker()
	const key = "k"
	recovery := time.Second

	b.RecordFailure(key, 1)
	clock.Advance(recovery)

	if !b.Allow(key, recovery) {
		t.Fatal("first trial call should be admitted")
	}
	if b.Allow(key, recovery) {
		t.Fatal("second concurrent trial call should be rejected")
	}

	// A trial call that never reports releases its slot after the recovery timeout.
	clock.Advance(recovery)
	if !b.Allow(key, recovery) {
		t.Fatal("stale trial call should be replaced")
	}

	b.RecordFailure(key, 1)
	if s := b.Snapshot(key); s.State != circuit.StateOpen {
		t.Fatalf("failed trial call: state = %s, want OPEN", s.State)
	}
	if b.Allow(key, recovery) {
		t.Fatal("reopened circuit should reject")
	}
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	b, _ := newBreaker()

	b.RecordFailure("a", 1)
	if b.Allow("a", time.Minute) {
		t.Fatal("key a should be open")
	}
	if !b.Allow("b", time.Minute) {
		t.Fatal("key b should be closed")
	}
}

func TestBreakerConcurrentFailures(t *testing.T) {
	b, _ := newBreaker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure("shared", 1000)
		}()
	}
	wg.Wait()

	if s := b.Snapshot("shared"); s.Failures != 50 {
		t.Fatalf("failures = %d, want 50", s.Failures)
	}
}

func TestConfigNormalize(t *testing.T) {
	got := circuit.Config{}.Normalize()
	if got.FailureThreshold != 1 || got.RecoveryTimeoutSec != 0.1 {
		t.Fatalf("Normalize() = %+v", got)
	}
	if d := circuit.DefaultConfig().RecoveryTimeout(); d != 5*time.Second {
		t.Fatalf("RecoveryTimeout() = %v, want 5s", d)
	}
}

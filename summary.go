package conduit

import (
	"context"
	"math"

	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/run"
)

// Summary aggregates run and dead-letter counts.
type Summary struct {
	TotalRuns          int64   `json:"total_runs"`
	SucceededRuns      int64   `json:"succeeded_runs"`
	FailedRuns         int64   `json:"failed_runs"`
	PendingDeadLetters int64   `json:"pending_dead_letters"`
	SuccessRate        float64 `json:"success_rate"`
}

// Summary counts runs by status and pending dead letters. SuccessRate is
// rounded to four decimal places and is 0 when there are no runs.
func (c *Conduit) Summary(ctx context.Context) (*Summary, error) {
	total, err := c.store.CountRuns(ctx, "")
	if err != nil {
		return nil, err
	}
	succeeded, err := c.store.CountRuns(ctx, run.StatusSucceeded)
	if err != nil {
		return nil, err
	}
	failed, err := c.store.CountRuns(ctx, run.StatusFailed)
	if err != nil {
		return nil, err
	}
	pending, err := c.store.CountDeadLetters(ctx, deadletter.StatusPending)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TotalRuns:          total,
		SucceededRuns:      succeeded,
		FailedRuns:         failed,
		PendingDeadLetters: pending,
	}
	if total > 0 {
		s.SuccessRate = math.Round(float64(succeeded)/float64(total)*10000) / 10000
	}
	return s, nil
}

// Circuit returns the breaker state for a circuit key.
func (c *Conduit) Circuit(key string) circuit.Snapshot {
	return c.breaker.Snapshot(key)
}

// ResetCircuit forgets the breaker and rate-limit state for a circuit key,
// closing an open circuit at once. It returns the fresh snapshot.
func (c *Conduit) ResetCircuit(ctx context.Context, key string) circuit.Snapshot {
	c.breaker.Reset(key)
	c.limiter.Reset(key)
	c.logger.InfoContext(ctx, "circuit reset", "circuit_key", key)
	return c.breaker.Snapshot(key)
}

package run

import (
	"context"

	"github.com/xraph/conduit/id"
)

// Store defines the persistence contract for runs.
type Store interface {
	// CreateRun persists a new run.
	CreateRun(ctx context.Context, r *Run) error

	// UpdateRun replaces a stored run.
	UpdateRun(ctx context.Context, r *Run) error

	// GetRun returns a run by ID.
	GetRun(ctx context.Context, runID id.ID) (*Run, error)

	// ListRuns returns runs, most recently started first.
	ListRuns(ctx context.Context, opts ListOpts) ([]*Run, error)

	// CountRuns counts runs in status s. An empty status counts all runs.
	CountRuns(ctx context.Context, s Status) (int64, error)

	// GetRunByIdempotencyKey returns the run created for routeID with key.
	GetRunByIdempotencyKey(ctx context.Context, routeID id.ID, key string) (*Run, error)
}

package deadletter

import (
	"context"
	"time"

	"github.com/xraph/conduit/id"
)

// Store defines the persistence contract for dead-letter entries.
type Store interface {
	// PushDeadLetter persists a new entry.
	PushDeadLetter(ctx context.Context, e *Entry) error

	// GetDeadLetter returns an entry by ID.
	GetDeadLetter(ctx context.Context, entryID id.ID) (*Entry, error)

	// UpdateDeadLetter replaces a stored entry.
	UpdateDeadLetter(ctx context.Context, e *Entry) error

	// ListDeadLetters returns entries, newest first.
	ListDeadLetters(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// CountDeadLetters counts entries in status s. An empty status counts
	// every entry.
	CountDeadLetters(ctx context.Context, s Status) (int64, error)

	// PurgeDeadLetters deletes REPLAYED entries created before the given
	// time and returns how many were removed.
	PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error)
}

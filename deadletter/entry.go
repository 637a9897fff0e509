// Package deadletter stores runs that failed permanently so they can be
// inspected and replayed.
package deadletter

import (
	"time"

	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/internal/entity"
)

// Status is the replay state of an Entry.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusReplayed Status = "REPLAYED"
)

// Entry is a failed run held for replay. There is at most one Entry per run.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this entry.
	ID id.ID `json:"id"`

	// RouteID references the route the run belonged to.
	RouteID id.ID `json:"route_id"`

	// RunID references the failed run.
	RunID id.ID `json:"run_id"`

	// SourcePayload is the inbound payload. Replays re-dispatch it.
	SourcePayload any `json:"source_payload"`

	// MappedPayload is nil when the failure happened before or during mapping.
	MappedPayload any `json:"mapped_payload,omitempty"`

	// Error is the error recorded on the run.
	Error string `json:"error"`

	// Attempts is the number of delivery attempts made.
	Attempts int `json:"attempts"`

	// LastStatusCode is the status of the final attempt, if there was one.
	LastStatusCode int `json:"last_status_code,omitempty"`

	Status Status `json:"status"`

	// ReplayCount counts every replay, successful or not.
	ReplayCount int `json:"replay_count"`

	LastReplayedAt *time.Time `json:"last_replayed_at,omitempty"`
}

// ListOpts configures filtering and pagination for listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Status  Status
	RouteID *id.ID
	From    *time.Time
	To      *time.Time
}

// Failure describes a failed run being dead-lettered.
type Failure struct {
	RouteID        id.ID
	RunID          id.ID
	SourcePayload  any
	MappedPayload  any
	Error          string
	Attempts       int
	LastStatusCode int
}

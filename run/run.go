// Package run records the execution of one dispatch.
package run

import (
	"time"

	"github.com/xraph/conduit/id"
)

// Status is the lifecycle state of a Run.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Run is the record of one dispatch. Attempts never decrease and a Run is
// immutable once terminal.
type Run struct {
	ID             id.ID      `json:"id"`
	RouteID        id.ID      `json:"route_id"`
	Status         Status     `json:"status"`
	SourcePayload  any        `json:"source_payload"`
	MappedPayload  any        `json:"mapped_payload,omitempty"`
	ResponseStatus int        `json:"response_status,omitempty"`
	ResponseBody   any        `json:"response_body,omitempty"`
	Attempts       int        `json:"attempts"`
	Error          string     `json:"error,omitempty"`
	CorrelationID  string     `json:"correlation_id"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	DurationMs     int64      `json:"duration_ms,omitempty"`
}

// New returns a RUNNING run for routeID with zero attempts.
func New(routeID id.ID, payload any, correlationID, idempotencyKey string) *Run {
	return &Run{
		ID:             id.NewRunID(),
		RouteID:        routeID,
		Status:         StatusRunning,
		SourcePayload:  payload,
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		StartedAt:      time.Now().UTC(),
	}
}

// Succeed moves the run to SUCCEEDED.
func (r *Run) Succeed(status int, body any, attempts int) {
	r.ResponseStatus = status
	r.ResponseBody = body
	r.Error = ""
	r.finish(StatusSucceeded, attempts)
}

// Fail moves the run to FAILED with errMsg.
func (r *Run) Fail(errMsg string, attempts int) {
	r.Error = errMsg
	r.finish(StatusFailed, attempts)
}

func (r *Run) finish(s Status, attempts int) {
	if attempts > r.Attempts {
		r.Attempts = attempts
	}
	now := time.Now().UTC()
	r.Status = s
	r.FinishedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}

// ListOpts configures filtering and pagination for run listing.
type ListOpts struct {
	Offset  int
	Limit   int
	RouteID *id.ID
	Status  Status
}

package api

import (
	"encoding/json"

	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/credential"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/retry"
	"github.com/xraph/conduit/route"
)

// ---------------------------------------------------------------------------
// Route requests
// ---------------------------------------------------------------------------

// CreateRouteForgeRequest binds the body for POST /routes. Omitted retry and
// circuit settings fall back to their defaults.
type CreateRouteForgeRequest struct {
	Name        string                 `description:"Route name"                          json:"name"`
	Description string                 `description:"Route description"                   json:"description,omitempty"`
	Enabled     *bool                  `description:"Whether the route dispatches (default true)" json:"enabled,omitempty"`
	Source      route.Source           `description:"Inbound source and event pattern"   json:"source"`
	Target      connector.Target       `description:"Outbound target"                     json:"target"`
	Mapping     []mapping.Rule         `description:"Field mapping rules"                 json:"mapping"`
	Credential  *credential.Credential `description:"Outbound credential"                 json:"credential,omitempty"`
	Retry       *retry.Policy          `description:"Retry policy"                        json:"retry,omitempty"`
	Circuit     *circuit.Config        `description:"Circuit breaker settings"            json:"circuit,omitempty"`
}

// ListRoutesForgeRequest binds query parameters for GET /routes.
type ListRoutesForgeRequest struct {
	Enabled string `description:"Filter by enabled flag (true/false)" query:"enabled" optional:"true"`
	Offset  int    `description:"Pagination offset"                   query:"offset" optional:"true"`
	Limit   int    `description:"Page size (default 50)"              query:"limit" optional:"true"`
}

// RouteForgeRequest binds the path for single-route operations.
type RouteForgeRequest struct {
	RouteID string `description:"Route identifier" path:"routeId"`
}

// ListRouteRunsForgeRequest binds path + query for GET /routes/:routeId/runs.
type ListRouteRunsForgeRequest struct {
	RouteID string `description:"Route identifier"        path:"routeId"`
	Status  string `description:"Filter by run status"    query:"status" optional:"true"`
	Offset  int    `description:"Pagination offset"       query:"offset" optional:"true"`
	Limit   int    `description:"Page size (default 100)" query:"limit" optional:"true"`
}

// ---------------------------------------------------------------------------
// Dispatch requests
// ---------------------------------------------------------------------------

// RunRouteForgeRequest binds path + body for POST /routes/:routeId/run.
type RunRouteForgeRequest struct {
	RouteID        string          `description:"Route identifier"                 path:"routeId"`
	Async          string          `description:"Queue the run on the worker pool" query:"async" optional:"true"`
	Payload        json.RawMessage `description:"Source payload"                   json:"payload"`
	CorrelationID  string          `description:"Correlation ID sent as X-Request-Id" json:"correlation_id,omitempty"`
	IdempotencyKey string          `description:"Idempotency key"                  json:"idempotency_key,omitempty"`
}

// SendEventForgeRequest binds the body for POST /events.
type SendEventForgeRequest struct {
	Event          string          `description:"Event name (e.g. order.created)" json:"event"`
	Payload        json.RawMessage `description:"Source payload"                  json:"payload"`
	CorrelationID  string          `description:"Correlation ID"                  json:"correlation_id,omitempty"`
	IdempotencyKey string          `description:"Idempotency key"                 json:"idempotency_key,omitempty"`
}

// ---------------------------------------------------------------------------
// Run requests
// ---------------------------------------------------------------------------

// ListRunsForgeRequest binds query parameters for GET /runs.
type ListRunsForgeRequest struct {
	RouteID string `description:"Filter by route"         query:"route_id" optional:"true"`
	Status  string `description:"Filter by run status"    query:"status" optional:"true"`
	Offset  int    `description:"Pagination offset"       query:"offset" optional:"true"`
	Limit   int    `description:"Page size (default 100)" query:"limit" optional:"true"`
}

// GetRunForgeRequest binds the path for GET /runs/:runId.
type GetRunForgeRequest struct {
	RunID string `description:"Run identifier" path:"runId"`
}

// ---------------------------------------------------------------------------
// Dead letter requests
// ---------------------------------------------------------------------------

// ListDeadLettersForgeRequest binds query parameters for GET /dead-letters.
type ListDeadLettersForgeRequest struct {
	Status  string `description:"Filter by status (PENDING/REPLAYED)" query:"status" optional:"true"`
	RouteID string `description:"Filter by route"                     query:"route_id" optional:"true"`
	From    string `description:"Created at or after (RFC3339)"       query:"from" optional:"true"`
	To      string `description:"Created before (RFC3339)"            query:"to" optional:"true"`
	Offset  int    `description:"Pagination offset"                   query:"offset" optional:"true"`
	Limit   int    `description:"Page size (default 100)"             query:"limit" optional:"true"`
}

// DeadLetterForgeRequest binds the path for single-entry operations.
type DeadLetterForgeRequest struct {
	DeadLetterID string `description:"Dead letter identifier" path:"deadLetterId"`
}

// ReplayDeadLetterForgeRequest binds path + body for POST /dead-letters/:deadLetterId/replay.
type ReplayDeadLetterForgeRequest struct {
	DeadLetterID  string `description:"Dead letter identifier" path:"deadLetterId"`
	CorrelationID string `description:"Correlation ID"         json:"correlation_id,omitempty"`
}

// PurgeDeadLettersForgeRequest binds query parameters for DELETE /dead-letters.
type PurgeDeadLettersForgeRequest struct {
	Before string `description:"Purge replayed entries created before (RFC3339)" query:"before"`
}

// ---------------------------------------------------------------------------
// Ops requests
// ---------------------------------------------------------------------------

// MetricsForgeRequest is empty; GET /metrics has no parameters.
type MetricsForgeRequest struct{}

// CircuitForgeRequest binds the path for GET /circuits/:key.
type CircuitForgeRequest struct {
	Key string `description:"Circuit key (target name)" path:"key"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// PurgeForgeResponse is returned by DELETE /dead-letters.
type PurgeForgeResponse struct {
	Purged int64 `json:"purged"`
}

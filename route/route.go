// Package route defines routes: an inbound source bound to a downstream
// target through mapping rules, credentials and resilience settings.
package route

import (
	"encoding/json"

	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/credential"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/internal/entity"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/retry"
)

// Source describes the inbound side of a route.
type Source struct {
	Name string `json:"name" yaml:"name" validate:"required,max=200"`

	// Event is the event name or pattern this source accepts. Segments may
	// be "*" wildcards.
	Event string `json:"event" yaml:"event" validate:"required,max=200"`

	Active bool `json:"active" yaml:"active"`

	// Schema is an optional JSON Schema applied to inbound payloads.
	Schema json.RawMessage `json:"schema,omitempty" yaml:"-"`

	// Secret, when set, requires inbound webhooks to carry a valid
	// signature.
	Secret string `json:"secret,omitempty" yaml:"secret"`
}

// Route is one configured integration.
type Route struct {
	entity.Entity

	ID          id.ID                  `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Enabled     bool                   `json:"enabled"`
	Source      Source                 `json:"source"`
	Target      connector.Target       `json:"target"`
	Mapping     []mapping.Rule         `json:"mapping"`
	Credential  *credential.Credential `json:"credential,omitempty"`
	Retry       retry.Policy           `json:"retry"`
	Circuit     circuit.Config         `json:"circuit"`
}

// CircuitKey names the breaker shared by every route that delivers to the
// same target.
func (r *Route) CircuitKey() string { return r.Target.Name }

// Dispatchable reports whether the route may run: it is enabled and both
// ends are active.
func (r *Route) Dispatchable() bool {
	return r.Enabled && r.Source.Active && r.Target.Active
}

// Accepts reports whether the route is dispatchable and its source event
// pattern matches name.
func (r *Route) Accepts(name string) bool {
	return r.Dispatchable() && MatchEvent(r.Source.Event, name)
}

// ListOpts configures filtering and pagination for route listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}

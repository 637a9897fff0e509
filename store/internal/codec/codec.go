// Package codec converts route configuration and run payloads to the JSON
// documents the persistent stores keep.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/credential"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/retry"
	"github.com/xraph/conduit/route"
)

// RouteSpec is the nested configuration of a route, stored as one document
// next to the route's indexed columns.
type RouteSpec struct {
	Source     route.Source           `json:"source"`
	Target     connector.Target       `json:"target"`
	Mapping    []mapping.Rule         `json:"mapping"`
	Credential *credential.Credential `json:"credential,omitempty"`
	Retry      retry.Policy           `json:"retry"`
	Circuit    circuit.Config         `json:"circuit"`
}

// EncodeRouteSpec encodes the nested configuration of r.
func EncodeRouteSpec(r *route.Route) ([]byte, error) {
	raw, err := json.Marshal(RouteSpec{
		Source:     r.Source,
		Target:     r.Target,
		Mapping:    r.Mapping,
		Credential: r.Credential,
		Retry:      r.Retry,
		Circuit:    r.Circuit,
	})
	if err != nil {
		return nil, fmt.Errorf("encode route %s: %w", r.ID, err)
	}
	return raw, nil
}

// DecodeRouteSpec decodes raw into the nested configuration of r.
func DecodeRouteSpec(raw []byte, r *route.Route) error {
	var spec RouteSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("decode route %s: %w", r.ID, err)
	}
	r.Source = spec.Source
	r.Target = spec.Target
	r.Mapping = spec.Mapping
	r.Credential = spec.Credential
	r.Retry = spec.Retry
	r.Circuit = spec.Circuit
	return nil
}

// EncodeValue encodes a payload. A nil payload encodes to nil so it is
// stored as NULL.
func EncodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

// DecodeValue decodes a stored payload into plain JSON values. Empty input
// and JSON null decode to nil.
func DecodeValue(raw []byte) (any, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

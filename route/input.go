package route

import (
	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/credential"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/retry"
)

// Input is the payload for creating a route. Decode into the value returned
// by NewInput so omitted fields keep their defaults.
type Input struct {
	Name        string                 `json:"name"                 yaml:"name"        validate:"required,max=200"`
	Description string                 `json:"description,omitempty" yaml:"description" validate:"max=2000"`
	Enabled     bool                   `json:"enabled"              yaml:"enabled"`
	Source      Source                 `json:"source"               yaml:"source"`
	Target      connector.Target       `json:"target"               yaml:"target"`
	Mapping     []mapping.Rule         `json:"mapping"              yaml:"mapping"`
	Credential  *credential.Credential `json:"credential,omitempty" yaml:"credential"`
	Retry       retry.Policy           `json:"retry"                yaml:"retry"`
	Circuit     circuit.Config         `json:"circuit"              yaml:"circuit"`
}

// NewInput returns an Input carrying route defaults: enabled, both ends
// active, HTTP POST, and the default retry and circuit settings.
func NewInput() Input {
	return Input{
		Enabled: true,
		Source:  Source{Active: true},
		Target: connector.Target{
			Protocol: connector.ProtocolHTTP,
			Method:   "POST",
			Active:   true,
		},
		Retry:   retry.DefaultPolicy(),
		Circuit: circuit.DefaultConfig(),
	}
}

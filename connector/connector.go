// Package connector defines the protocol-neutral send contract used by the
// delivery client, and a registry that selects an implementation by the
// route target's protocol.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Protocol names a downstream transport.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolKafka Protocol = "kafka"
	ProtocolMQTT  Protocol = "mqtt"
)

// ErrUnknownProtocol is returned when no connector is registered for a protocol.
var ErrUnknownProtocol = errors.New("connector: unknown protocol")

// Target describes where a route delivers.
//
// For http, BaseURL plus Path form the URL. For kafka, BaseURL is a comma
// separated broker list and Topic the topic. For mqtt, BaseURL is the broker
// URL and Topic the topic. Name keys the circuit breaker, so routes sharing
// a Name share breaker state. RateLimit caps calls per second (0 is
// unlimited) and SigningSecret, when set, signs HTTP bodies.
type Target struct {
	Name          string            `json:"name"                     yaml:"name"           validate:"required"`
	Protocol      Protocol          `json:"protocol,omitempty"       yaml:"protocol"`
	BaseURL       string            `json:"base_url"                 yaml:"base_url"       validate:"required"`
	Method        string            `json:"method,omitempty"         yaml:"method"`
	Path          string            `json:"path,omitempty"           yaml:"path"`
	Topic         string            `json:"topic,omitempty"          yaml:"topic"`
	Headers       map[string]string `json:"headers,omitempty"        yaml:"headers"`
	Active        bool              `json:"active"                   yaml:"active"`
	RateLimit     int               `json:"rate_limit,omitempty"     yaml:"rate_limit"     validate:"gte=0"`
	SigningSecret string            `json:"signing_secret,omitempty" yaml:"signing_secret"`
}

// Request is one send to a target.
type Request struct {
	Target        Target
	Payload       any
	Headers       map[string]string
	CorrelationID string
}

// Response is what the target answered. Message connectors report 202 once
// the broker has accepted the message.
type Response struct {
	StatusCode int
	Body       any
}

// Connector sends one request. A returned error is a transport failure;
// protocol-level rejections are reported through Response.StatusCode.
type Connector interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Registry maps protocols to connectors. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	connectors map[Protocol]Connector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[Protocol]Connector)}
}

// Register binds c to p, replacing any previous binding.
func (r *Registry) Register(p Protocol, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[Normalize(p)] = c
}

// Lookup returns the connector for p.
func (r *Registry) Lookup(p Protocol) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[Normalize(p)]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProtocol, p)
	}
	return c, nil
}

// Close closes every registered connector that implements io.Closer.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, c := range r.connectors {
		if cl, ok := c.(io.Closer); ok {
			errs = append(errs, cl.Close())
		}
	}
	return errors.Join(errs...)
}

// Normalize folds protocol aliases: "", "https" and "rest" are http.
func Normalize(p Protocol) Protocol {
	switch s := Protocol(strings.ToLower(strings.TrimSpace(string(p)))); s {
	case "", "https", "rest":
		return ProtocolHTTP
	default:
		return s
	}
}

// DecodeBody returns nil for an empty body, the decoded JSON value when the
// body is valid JSON, and the raw text otherwise.
func DecodeBody(b []byte) any {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(b, &v); err == nil {
		return v
	}
	return string(b)
}

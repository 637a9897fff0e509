// Package rest delivers payloads to HTTP targets.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/signature"
)

const (
	// maxResponseBody caps how much of a response is read and kept.
	maxResponseBody = 1 << 20

	userAgent = "Conduit/1.0"
)

// Connector performs HTTP deliveries.
type Connector struct {
	client *http.Client
	now    func() time.Time
}

var _ connector.Connector = (*Connector)(nil)

// New creates a connector. A nil client uses one with no timeout of its own;
// the delivery client bounds each call through the context.
func New(client *http.Client) *Connector {
	if client == nil {
		client = &http.Client{}
	}
	return &Connector{client: client, now: time.Now}
}

// URL joins base and path with exactly one slash.
func URL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Send issues the request and reports the status and decoded body.
func (c *Connector) Send(ctx context.Context, req *connector.Request) (*connector.Response, error) {
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("rest: marshal payload: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(req.Target.Method))
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, URL(req.Target.BaseURL, req.Target.Path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rest: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	if secret := req.Target.SigningSecret; secret != "" {
		ts := c.now().Unix()
		httpReq.Header.Set(signature.HeaderSignature, signature.Sign(body, secret, ts))
		httpReq.Header.Set(signature.HeaderTimestamp, strconv.FormatInt(ts, 10))
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq) //nolint:gosec // target URLs are operator-configured
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("rest: read response: %w", err)
	}

	return &connector.Response{
		StatusCode: resp.StatusCode,
		Body:       connector.DecodeBody(raw),
	}, nil
}

// Package delivery sends one payload to a target, retrying with exponential
// backoff behind a per-target circuit breaker.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/observability"
	"github.com/xraph/conduit/ratelimit"
	"github.com/xraph/conduit/retry"
)

// HeaderRequestID carries the correlation id on every call.
const HeaderRequestID = "X-Request-Id"

// DefaultCallTimeout bounds a single call.
const DefaultCallTimeout = 15 * time.Second

// Request describes one delivery.
type Request struct {
	Target connector.Target
	// CircuitKey defaults to Target.Name.
	CircuitKey    string
	Payload       any
	Headers       map[string]string
	Retry         retry.Policy
	Circuit       circuit.Config
	CorrelationID string
}

// Result is a successful delivery.
type Result struct {
	StatusCode int
	Body       any
	Attempts   int
}

// Config holds client configuration.
type Config struct {
	CallTimeout time.Duration
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
}

// Client executes deliveries. It is safe for concurrent use; attempts
// within one Deliver call run strictly in sequence.
type Client struct {
	connectors *connector.Registry
	breaker    *circuit.Breaker
	limiter    *ratelimit.Limiter
	config     Config
	logger     *slog.Logger
}

// NewClient creates a delivery client.
func NewClient(connectors *connector.Registry, breaker *circuit.Breaker, limiter *ratelimit.Limiter, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if limiter == nil {
		limiter = ratelimit.New()
	}
	return &Client{
		connectors: connectors,
		breaker:    breaker,
		limiter:    limiter,
		config:     cfg,
		logger:     logger,
	}
}

// Deliver runs the attempt loop:
//
//  1. Ask the breaker; an open circuit fails fast with *CircuitOpenError.
//  2. Wait for the target's rate limit.
//  3. Send through the protocol connector with a bounded timeout.
//  4. Status < 400 closes the circuit and returns.
//  5. Anything else counts as a failure; retryable failures sleep the
//     backoff and go again while attempts remain.
//
// Exhaustion returns *RetryExhaustedError. Cancelling ctx stops the loop
// with *AbortedError.
func (c *Client) Deliver(ctx context.Context, req Request) (*Result, error) {
	conn, err := c.connectors.Lookup(req.Target.Protocol)
	if err != nil {
		return nil, err
	}

	policy := req.Retry.Normalize()
	cb := req.Circuit.Normalize()
	key := req.CircuitKey
	if key == "" {
		key = req.Target.Name
	}

	send := &connector.Request{
		Target:        req.Target,
		Payload:       req.Payload,
		Headers:       mergeHeaders(req.Target.Headers, req.Headers, req.CorrelationID),
		CorrelationID: req.CorrelationID,
	}

	var (
		lastErr    string
		lastStatus int
		lastBody   any
		attempts   int
	)

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if !c.breaker.Allow(key, cb.RecoveryTimeout()) {
			c.config.Metrics.RecordCircuitRejection(key)
			return nil, &CircuitOpenError{Key: key, Attempts: attempts}
		}

		if err := c.limiter.Wait(ctx, key, req.Target.RateLimit); err != nil {
			return nil, &AbortedError{Attempts: attempts, Err: err}
		}

		attempts = attempt
		resp, sendErr := c.call(ctx, conn, key, attempt, send)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		// The breaker hears every completed call, including one that
		// finished as ctx ended, so a HALF_OPEN trial call is always settled.
		decision := retry.Decide(status, sendErr, attempt, policy.MaxAttempts)
		if decision == retry.Delivered {
			c.breaker.RecordSuccess(key)
			return &Result{StatusCode: status, Body: resp.Body, Attempts: attempt}, nil
		}

		c.breaker.RecordFailure(key, cb.FailureThreshold)
		if ctx.Err() != nil {
			return nil, &AbortedError{Attempts: attempts, Err: ctx.Err()}
		}

		if sendErr != nil {
			lastErr, lastStatus, lastBody = sendErr.Error(), 0, nil
		} else {
			lastErr, lastStatus, lastBody = fmt.Sprintf("HTTP %d", status), status, resp.Body
		}

		c.logger.DebugContext(ctx, "delivery attempt failed",
			"target", key,
			"attempt", attempt,
			"status", status,
			"error", lastErr,
			"decision", decision.String(),
		)

		if decision == retry.Exhausted {
			break
		}

		if err := sleep(ctx, policy.Backoff(attempt)); err != nil {
			return nil, &AbortedError{Attempts: attempts, Err: err}
		}
	}

	return nil, &RetryExhaustedError{
		LastError:  lastErr,
		StatusCode: lastStatus,
		Body:       lastBody,
		Attempts:   attempts,
	}
}

// call performs one attempt under the per-call timeout.
func (c *Client) call(ctx context.Context, conn connector.Connector, key string, attempt int, req *connector.Request) (*connector.Response, error) {
	ctx, span := c.config.Tracer.StartAttemptSpan(ctx, key, attempt)

	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	start := time.Now()
	resp, err := conn.Send(callCtx, req)
	latency := time.Since(start)

	outcome, status, errMsg := "success", 0, ""
	switch {
	case err != nil:
		outcome, errMsg = "transport_error", err.Error()
	case resp.StatusCode >= 400:
		outcome, status, errMsg = "http_error", resp.StatusCode, fmt.Sprintf("HTTP %d", resp.StatusCode)
	default:
		status = resp.StatusCode
	}

	c.config.Metrics.RecordAttempt(outcome, latency.Seconds())
	c.config.Tracer.EndAttemptSpan(span, status, latency.Milliseconds(), errMsg)

	return resp, err
}

// mergeHeaders layers static target headers, then auth headers, then the
// request id.
func mergeHeaders(static, auth map[string]string, correlationID string) map[string]string {
	out := make(map[string]string, len(static)+len(auth)+1)
	for k, v := range static {
		out[k] = v
	}
	for k, v := range auth {
		out[k] = v
	}
	if correlationID != "" {
		out[HeaderRequestID] = correlationID
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

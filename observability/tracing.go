// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for the delivery pipeline.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/conduit"

// Tracer starts spans for dispatches and delivery attempts. A nil *Tracer
// returns non-recording spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

// StartDispatchSpan starts the span covering one run.
func (t *Tracer) StartDispatchSpan(ctx context.Context, routeID, runID, correlationID string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "conduit.dispatch",
		trace.WithAttributes(
			attribute.String("conduit.route_id", routeID),
			attribute.String("conduit.run_id", runID),
			attribute.String("conduit.correlation_id", correlationID),
		),
	)
}

// EndDispatchSpan records the run outcome and ends the span.
func (t *Tracer) EndDispatchSpan(span trace.Span, status string, attempts int, err error) {
	if t == nil {
		return
	}
	span.SetAttributes(
		attribute.String("conduit.status", status),
		attribute.Int("conduit.attempts", attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// StartAttemptSpan starts the span for one delivery attempt.
func (t *Tracer) StartAttemptSpan(ctx context.Context, target string, attempt int) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "conduit.deliver",
		trace.WithAttributes(
			attribute.String("conduit.target", target),
			attribute.Int("conduit.attempt", attempt),
		),
	)
}

// EndAttemptSpan records the attempt result and ends the span.
func (t *Tracer) EndAttemptSpan(span trace.Span, statusCode int, latencyMs int64, errMsg string) {
	if t == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int64("conduit.latency_ms", latencyMs),
	)
	if errMsg != "" {
		span.SetAttributes(attribute.String("conduit.error", errMsg))
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}

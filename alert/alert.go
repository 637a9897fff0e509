// Package alert notifies operators about failed integrations.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Priority ranks an alert.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// TypeIntegrationFailure is the alert type raised when a run is
// dead-lettered.
const TypeIntegrationFailure = "integration_failure"

// Alert is one notification.
type Alert struct {
	Type     string            `json:"type"`
	Priority Priority          `json:"priority"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IntegrationFailure builds the alert for a failed run.
func IntegrationFailure(routeID, routeName, runID, errMsg string) Alert {
	return Alert{
		Type:     TypeIntegrationFailure,
		Priority: PriorityHigh,
		Title:    "Integration Failure: " + routeName,
		Body:     fmt.Sprintf("Route '%s' failed with error: %s. Event moved to dead-letter store.", routeName, errMsg),
		Metadata: map[string]string{
			"route_id": routeID,
			"run_id":   runID,
			"error":    errMsg,
		},
	}
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// LogNotifier writes alerts to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs a at warn level, or error level for high priority.
func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	level := slog.LevelWarn
	if a.Priority == PriorityHigh {
		level = slog.LevelError
	}

	attrs := []any{"type", a.Type, "priority", string(a.Priority), "body", a.Body}
	for k, v := range a.Metadata {
		attrs = append(attrs, k, v)
	}

	n.logger.Log(ctx, level, a.Title, attrs...)
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

// Notify calls every notifier, even after a failure.
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

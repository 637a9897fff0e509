package conduit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/xraph/conduit/alert"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/delivery"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/run"
)

// DispatchOpts carries per-dispatch options.
type DispatchOpts struct {
	// CorrelationID is sent as X-Request-Id. One is generated when empty.
	CorrelationID string

	// IdempotencyKey deduplicates dispatches on the same route. A repeated
	// key returns the earlier run without delivering again.
	IdempotencyKey string
}

// Dispatch runs the pipeline for one payload on a route and returns the
// terminal run.
//
// The critical path:
//  1. Resolve the route (it must be enabled with both ends active).
//  2. Create the RUNNING run, or return the run already holding the
//     idempotency key.
//  3. Validate the payload against the source schema.
//  4. Map the payload and store the result on the run.
//  5. Resolve auth headers and deliver.
//  6. Record the outcome. Failures are dead-lettered and alerted, and the
//     original error is returned alongside the failed run.
func (c *Conduit) Dispatch(ctx context.Context, routeID id.ID, payload any, opts DispatchOpts) (*run.Run, error) {
	rt, err := c.dispatchableRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, rt, payload, opts)
}

// DispatchEvent dispatches on the earliest-created route whose source
// accepts eventName.
func (c *Conduit) DispatchEvent(ctx context.Context, eventName string, payload any, opts DispatchOpts) (*run.Run, error) {
	rt, err := c.matchRoute(ctx, eventName)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, rt, payload, opts)
}

// Submit creates the run and executes the rest of the pipeline on the
// worker pool. The returned run is a snapshot taken before execution, so it
// is normally RUNNING; poll the store for the outcome.
func (c *Conduit) Submit(ctx context.Context, routeID id.ID, payload any, opts DispatchOpts) (*run.Run, error) {
	rt, err := c.dispatchableRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}

	r, existing, err := c.begin(ctx, rt, payload, opts)
	if err != nil || existing {
		return r, err
	}

	snapshot := *r
	detached := context.WithoutCancel(ctx)

	if err := c.pool.Submit(func(poolCtx context.Context) {
		// Cancellation comes from the pool; values from the caller.
		runCtx, cancel := context.WithCancel(detached)
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()
		defer cancel()

		_, _ = c.execute(runCtx, rt, r)
	}); err != nil {
		_, _ = c.finishFailed(detached, rt, r, err)
		return r, err
	}

	return &snapshot, nil
}

// ReplayDeadLetter re-dispatches an entry's source payload on its route.
// Every replay increments the entry's replay count; only a successful one
// marks it REPLAYED.
//
// Replays of one entry run one at a time. A replay that finds the entry
// already REPLAYED returns ErrAlreadyReplayed with the entry and delivers
// nothing.
func (c *Conduit) ReplayDeadLetter(ctx context.Context, entryID id.ID, correlationID string) (*run.Run, *deadletter.Entry, error) {
	unlock, err := c.replays.Lock(ctx, entryID.String())
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	entry, err := c.deadLetterSvc.Get(ctx, entryID)
	if err != nil {
		return nil, nil, err
	}
	if entry.Status == deadletter.StatusReplayed {
		return nil, entry, ErrAlreadyReplayed
	}

	r, dispatchErr := c.Dispatch(ctx, entry.RouteID, entry.SourcePayload, DispatchOpts{CorrelationID: correlationID})

	out := context.WithoutCancel(ctx)
	if dispatchErr != nil {
		c.metrics.RecordReplay("failed")
		if err := c.deadLetterSvc.RecordFailedReplay(out, entry); err != nil {
			c.logger.ErrorContext(out, "recording failed replay", "dead_letter_id", entryID.String(), "error", err)
		}
		return r, entry, dispatchErr
	}

	c.metrics.RecordReplay("succeeded")
	if err := c.deadLetterSvc.MarkReplayed(out, entry); err != nil {
		return r, entry, fmt.Errorf("conduit: mark replayed: %w", err)
	}

	c.logger.InfoContext(ctx, "dead letter replayed",
		"dead_letter_id", entryID.String(),
		"run_id", r.ID.String(),
		"replay_count", entry.ReplayCount,
	)
	return r, entry, nil
}

// ──────────────────────────────────────────────────
// Pipeline
// ──────────────────────────────────────────────────

func (c *Conduit) dispatch(ctx context.Context, rt *route.Route, payload any, opts DispatchOpts) (*run.Run, error) {
	r, existing, err := c.begin(ctx, rt, payload, opts)
	if err != nil || existing {
		return r, err
	}
	return c.execute(ctx, rt, r)
}

func (c *Conduit) dispatchableRoute(ctx context.Context, routeID id.ID) (*route.Route, error) {
	rt, err := c.store.GetRoute(ctx, routeID)
	if err != nil {
		if errors.Is(err, ErrRouteNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
		}
		return nil, fmt.Errorf("conduit: get route: %w", err)
	}
	if !rt.Dispatchable() {
		return nil, fmt.Errorf("%w: %s is disabled or inactive", ErrRouteNotFound, routeID)
	}
	return rt, nil
}

func (c *Conduit) matchRoute(ctx context.Context, eventName string) (*route.Route, error) {
	enabled := true
	routes, err := c.store.ListRoutes(ctx, route.ListOpts{Enabled: &enabled})
	if err != nil {
		return nil, fmt.Errorf("conduit: list routes: %w", err)
	}
	for _, rt := range routes {
		if rt.Accepts(eventName) {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("%w: no route accepts event %q", ErrRouteNotFound, eventName)
}

// begin creates the RUNNING run. existing is true when the idempotency key
// already belongs to a run, which is returned instead.
func (c *Conduit) begin(ctx context.Context, rt *route.Route, payload any, opts DispatchOpts) (*run.Run, bool, error) {
	if key := opts.IdempotencyKey; key != "" {
		prev, err := c.store.GetRunByIdempotencyKey(ctx, rt.ID, key)
		if err == nil {
			c.logger.DebugContext(ctx, "idempotent dispatch", "route_id", rt.ID.String(), "run_id", prev.ID.String())
			return prev, true, nil
		}
		if !errors.Is(err, ErrRunNotFound) {
			return nil, false, fmt.Errorf("conduit: lookup idempotency key: %w", err)
		}
	}

	doc, err := normalizePayload(payload)
	if err != nil {
		return nil, false, err
	}

	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	r := run.New(rt.ID, doc, correlationID, opts.IdempotencyKey)
	if err := c.store.CreateRun(ctx, r); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			prev, getErr := c.store.GetRunByIdempotencyKey(ctx, rt.ID, opts.IdempotencyKey)
			return prev, true, getErr
		}
		return nil, false, fmt.Errorf("conduit: create run: %w", err)
	}

	return r, false, nil
}

// execute takes a RUNNING run to a terminal state.
func (c *Conduit) execute(ctx context.Context, rt *route.Route, r *run.Run) (*run.Run, error) {
	ctx, span := c.tracer.StartDispatchSpan(ctx, rt.ID.String(), r.ID.String(), r.CorrelationID)

	res, err := c.pipeline(ctx, rt, r)

	out := context.WithoutCancel(ctx)
	if err != nil {
		_, _ = c.finishFailed(out, rt, r, err)
		c.tracer.EndDispatchSpan(span, string(r.Status), r.Attempts, err)
		return r, err
	}

	r.Succeed(res.StatusCode, res.Body, res.Attempts)
	if updateErr := c.store.UpdateRun(out, r); updateErr != nil {
		c.logger.ErrorContext(out, "recording run success", "run_id", r.ID.String(), "error", updateErr)
	}
	c.metrics.RecordRun(string(run.StatusSucceeded))
	c.tracer.EndDispatchSpan(span, string(r.Status), r.Attempts, nil)

	c.logger.DebugContext(ctx, "run succeeded",
		"route_id", rt.ID.String(),
		"run_id", r.ID.String(),
		"status", res.StatusCode,
		"attempts", res.Attempts,
	)
	return r, nil
}

func (c *Conduit) pipeline(ctx context.Context, rt *route.Route, r *run.Run) (*delivery.Result, error) {
	if err := c.schemas.Validate(rt.Source.Schema, r.SourcePayload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadValidationFailed, err)
	}

	mapped, err := mapping.Apply(r.SourcePayload, rt.Mapping)
	if err != nil {
		return nil, err
	}
	r.MappedPayload = mapped
	if err := c.store.UpdateRun(ctx, r); err != nil {
		return nil, fmt.Errorf("conduit: store mapped payload: %w", err)
	}

	headers, err := c.credentials.BuildHeaders(ctx, rt.Credential)
	if err != nil {
		return nil, err
	}

	res, err := c.delivery.Deliver(ctx, delivery.Request{
		Target:        rt.Target,
		CircuitKey:    rt.CircuitKey(),
		Payload:       mapped,
		Headers:       headers,
		Retry:         rt.Retry,
		Circuit:       rt.Circuit,
		CorrelationID: r.CorrelationID,
	})
	if rejectedCredential(err) && rt.Credential != nil {
		// The next run fetches a fresh token.
		c.credentials.Invalidate(rt.Credential)
		c.logger.InfoContext(ctx, "target rejected credential, dropped cached token",
			"route_id", rt.ID.String(),
			"credential_id", rt.Credential.ID,
		)
	}
	return res, err
}

// rejectedCredential reports whether delivery ended on a 401 from the target.
func rejectedCredential(err error) bool {
	var exhausted *delivery.RetryExhaustedError
	return errors.As(err, &exhausted) && exhausted.StatusCode == http.StatusUnauthorized
}

// finishFailed marks the run FAILED, dead-letters it and raises an alert.
// ctx must already be detached from cancellation.
func (c *Conduit) finishFailed(ctx context.Context, rt *route.Route, r *run.Run, cause error) (*deadletter.Entry, error) {
	r.Fail(cause.Error(), delivery.Attempts(cause))

	var exhausted *delivery.RetryExhaustedError
	if errors.As(cause, &exhausted) {
		r.ResponseStatus = exhausted.StatusCode
		r.ResponseBody = exhausted.Body
	}

	if err := c.store.UpdateRun(ctx, r); err != nil {
		c.logger.ErrorContext(ctx, "recording run failure", "run_id", r.ID.String(), "error", err)
	}
	c.metrics.RecordRun(string(run.StatusFailed))

	entry, err := c.deadLetterSvc.Push(ctx, deadletter.Failure{
		RouteID:        rt.ID,
		RunID:          r.ID,
		SourcePayload:  r.SourcePayload,
		MappedPayload:  r.MappedPayload,
		Error:          r.Error,
		Attempts:       r.Attempts,
		LastStatusCode: r.ResponseStatus,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "dead-lettering run", "run_id", r.ID.String(), "error", err)
	} else {
		c.metrics.RecordDeadLetter()
	}

	c.notify(ctx, alert.IntegrationFailure(rt.ID.String(), rt.Name, r.ID.String(), r.Error))

	return entry, err
}

// notify sends an alert. Failures are logged and swallowed.
func (c *Conduit) notify(ctx context.Context, a alert.Alert) {
	ctx, cancel := context.WithTimeout(ctx, c.config.AlertTimeout)
	defer cancel()

	if err := c.notifier.Notify(ctx, a); err != nil {
		c.metrics.RecordAlertFailure()
		c.logger.WarnContext(ctx, "alert failed", "run_id", a.Metadata["run_id"], "error", err)
	}
}

// normalizePayload turns payload into plain JSON values so mapping and
// schema validation see the same document the stores persist.
func normalizePayload(payload any) (any, error) {
	switch p := payload.(type) {
	case nil, map[string]any, []any, string, bool, float64:
		return p, nil
	case json.RawMessage:
		return decodePayload(p)
	case []byte:
		return decodePayload(p)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("conduit: encode payload: %w", err)
	}
	return decodePayload(raw)
}

func decodePayload(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("conduit: decode payload: %w", err)
	}
	return doc, nil
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/circuit"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/run"
)

// ForgeAPI wires all Forge-style HTTP handlers together.
//
// Signed webhook ingress needs the raw body and headers, so it is served by
// Handler only.
type ForgeAPI struct {
	conduit *conduit.Conduit
	log     forge.Logger
}

// NewForgeAPI creates a ForgeAPI from a Conduit.
func NewForgeAPI(c *conduit.Conduit, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{
		conduit: c,
		log:     log,
	}
}

// RegisterRoutes registers all Conduit API routes into the given Forge router
// with full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerRouteRoutes(router)
	a.registerDispatchRoutes(router)
	a.registerRunRoutes(router)
	a.registerDeadLetterRoutes(router)
	a.registerOpsRoutes(router)
}

// ---------------------------------------------------------------------------
// Route routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerRouteRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("routes"))

	if err := g.POST("/routes", a.createRoute,
		forge.WithSummary("Create route"),
		forge.WithDescription("Creates an integration route from a source event to a target."),
		forge.WithOperationID("createRoute"),
		forge.WithRequestSchema(CreateRouteForgeRequest{}),
		forge.WithCreatedResponse(route.Route{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register createRoute route", forge.Error(err))
	}

	if err := g.GET("/routes", a.listRoutes,
		forge.WithSummary("List routes"),
		forge.WithDescription("Returns routes in creation order."),
		forge.WithOperationID("listRoutes"),
		forge.WithRequestSchema(ListRoutesForgeRequest{}),
		forge.WithListResponse(route.Route{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listRoutes route", forge.Error(err))
	}

	if err := g.GET("/routes/:routeId", a.getRoute,
		forge.WithSummary("Get route"),
		forge.WithDescription("Returns details of a specific route."),
		forge.WithOperationID("getRoute"),
		forge.WithResponseSchema(http.StatusOK, "Route details", route.Route{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getRoute route", forge.Error(err))
	}

	if err := g.DELETE("/routes/:routeId", a.deleteRoute,
		forge.WithSummary("Delete route"),
		forge.WithDescription("Permanently deletes a route. Its runs and dead letters are kept."),
		forge.WithOperationID("deleteRoute"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteRoute route", forge.Error(err))
	}

	if err := g.PATCH("/routes/:routeId/enable", a.enableRoute,
		forge.WithSummary("Enable route"),
		forge.WithDescription("Re-enables a disabled route."),
		forge.WithOperationID("enableRoute"),
		forge.WithResponseSchema(http.StatusOK, "Updated route", route.Route{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register enableRoute route", forge.Error(err))
	}

	if err := g.PATCH("/routes/:routeId/disable", a.disableRoute,
		forge.WithSummary("Disable route"),
		forge.WithDescription("Disables a route. Dispatches to it are rejected as not found."),
		forge.WithOperationID("disableRoute"),
		forge.WithResponseSchema(http.StatusOK, "Updated route", route.Route{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register disableRoute route", forge.Error(err))
	}

	if err := g.GET("/routes/:routeId/runs", a.listRouteRuns,
		forge.WithSummary("List route runs"),
		forge.WithDescription("Returns the runs of a route, newest first."),
		forge.WithOperationID("listRouteRuns"),
		forge.WithRequestSchema(ListRouteRunsForgeRequest{}),
		forge.WithListResponse(run.Run{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listRouteRuns route", forge.Error(err))
	}
}

func (a *ForgeAPI) createRoute(ctx forge.Context, req *CreateRouteForgeRequest) (*route.Route, error) {
	in := route.NewInput()
	in.Name = req.Name
	in.Description = req.Description
	in.Source = req.Source
	in.Target = req.Target
	in.Mapping = req.Mapping
	in.Credential = req.Credential
	if req.Enabled != nil {
		in.Enabled = *req.Enabled
	}
	if req.Retry != nil {
		in.Retry = *req.Retry
	}
	if req.Circuit != nil {
		in.Circuit = *req.Circuit
	}

	rt, err := a.conduit.Routes().Create(ctx.Context(), in)
	if err != nil {
		return nil, mapError(err)
	}

	err = ctx.JSON(http.StatusCreated, rt)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listRoutes(ctx forge.Context, req *ListRoutesForgeRequest) ([]*route.Route, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := route.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
	}
	if req.Enabled != "" {
		enabled, err := strconv.ParseBool(req.Enabled)
		if err != nil {
			return nil, forge.BadRequest("invalid enabled filter")
		}
		opts.Enabled = &enabled
	}

	routes, err := a.conduit.Routes().List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return routes, nil
}

func (a *ForgeAPI) getRoute(ctx forge.Context, req *RouteForgeRequest) (*route.Route, error) {
	routeID, err := id.ParseRouteID(req.RouteID)
	if err != nil {
		return nil, forge.BadRequest("invalid route ID")
	}

	rt, getErr := a.conduit.Routes().Get(ctx.Context(), routeID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return rt, nil
}

func (a *ForgeAPI) deleteRoute(ctx forge.Context, req *RouteForgeRequest) (*route.Route, error) {
	routeID, err := id.ParseRouteID(req.RouteID)
	if err != nil {
		return nil, forge.BadRequest("invalid route ID")
	}

	if deleteErr := a.conduit.Routes().Delete(ctx.Context(), routeID); deleteErr != nil {
		return nil, mapError(deleteErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) enableRoute(ctx forge.Context, req *RouteForgeRequest) (*route.Route, error) {
	return a.setRouteEnabled(ctx, req, true)
}

func (a *ForgeAPI) disableRoute(ctx forge.Context, req *RouteForgeRequest) (*route.Route, error) {
	return a.setRouteEnabled(ctx, req, false)
}

func (a *ForgeAPI) setRouteEnabled(ctx forge.Context, req *RouteForgeRequest, enabled bool) (*route.Route, error) {
	routeID, err := id.ParseRouteID(req.RouteID)
	if err != nil {
		return nil, forge.BadRequest("invalid route ID")
	}

	rt, setErr := a.conduit.Routes().SetEnabled(ctx.Context(), routeID, enabled)
	if setErr != nil {
		return nil, mapError(setErr)
	}

	return rt, nil
}

func (a *ForgeAPI) listRouteRuns(ctx forge.Context, req *ListRouteRunsForgeRequest) ([]*run.Run, error) {
	routeID, err := id.ParseRouteID(req.RouteID)
	if err != nil {
		return nil, forge.BadRequest("invalid route ID")
	}

	return a.listRunsWith(ctx, run.ListOpts{
		Offset:  req.Offset,
		Limit:   req.Limit,
		RouteID: &routeID,
		Status:  run.Status(req.Status),
	})
}

// ---------------------------------------------------------------------------
// Dispatch routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerDispatchRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("dispatch"))

	if err := g.POST("/routes/:routeId/run", a.runRoute,
		forge.WithSummary("Run route"),
		forge.WithDescription("Maps the payload and delivers it to the route's target. With async=true the run is queued and returned while RUNNING."),
		forge.WithOperationID("runRoute"),
		forge.WithRequestSchema(RunRouteForgeRequest{}),
		forge.WithResponseSchema(http.StatusAccepted, "Run outcome", DispatchResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register runRoute route", forge.Error(err))
	}

	if err := g.POST("/events", a.sendEvent,
		forge.WithSummary("Send event"),
		forge.WithDescription("Dispatches the payload on the earliest route whose source accepts the event."),
		forge.WithOperationID("sendEvent"),
		forge.WithRequestSchema(SendEventForgeRequest{}),
		forge.WithResponseSchema(http.StatusAccepted, "Run outcome", DispatchResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register sendEvent route", forge.Error(err))
	}
}

func (a *ForgeAPI) runRoute(ctx forge.Context, req *RunRouteForgeRequest) (*DispatchResponse, error) {
	routeID, err := id.ParseRouteID(req.RouteID)
	if err != nil {
		return nil, forge.BadRequest("invalid route ID")
	}

	async := false
	if req.Async != "" {
		if async, err = strconv.ParseBool(req.Async); err != nil {
			return nil, forge.BadRequest("invalid async flag")
		}
	}

	opts := conduit.DispatchOpts{
		CorrelationID:  req.CorrelationID,
		IdempotencyKey: req.IdempotencyKey,
	}

	var rn *run.Run
	var dispatchErr error
	if async {
		rn, dispatchErr = a.conduit.Submit(ctx.Context(), routeID, rawPayload(req.Payload), opts)
	} else {
		rn, dispatchErr = a.conduit.Dispatch(ctx.Context(), routeID, rawPayload(req.Payload), opts)
	}

	return a.writeDispatch(ctx, rn, dispatchErr)
}

func (a *ForgeAPI) sendEvent(ctx forge.Context, req *SendEventForgeRequest) (*DispatchResponse, error) {
	if req.Event == "" {
		return nil, forge.BadRequest("event is required")
	}

	rn, err := a.conduit.DispatchEvent(ctx.Context(), req.Event, rawPayload(req.Payload), conduit.DispatchOpts{
		CorrelationID:  req.CorrelationID,
		IdempotencyKey: req.IdempotencyKey,
	})

	return a.writeDispatch(ctx, rn, err)
}

// writeDispatch writes the run with 202 on success. A failed run is written
// with the mapped error status so callers keep its ID.
func (a *ForgeAPI) writeDispatch(ctx forge.Context, rn *run.Run, err error) (*DispatchResponse, error) {
	if err != nil && rn == nil {
		return nil, mapError(err)
	}

	status := http.StatusAccepted
	resp := newDispatchResponse(rn)
	if err != nil {
		status = dispatchStatus(err)
		resp.Error = err.Error()
	}

	if writeErr := ctx.JSON(status, resp); writeErr != nil {
		return nil, mapError(writeErr)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

// ---------------------------------------------------------------------------
// Run routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerRunRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("runs"))

	if err := g.GET("/runs", a.listRuns,
		forge.WithSummary("List runs"),
		forge.WithDescription("Returns runs newest first, optionally filtered by route and status."),
		forge.WithOperationID("listRuns"),
		forge.WithRequestSchema(ListRunsForgeRequest{}),
		forge.WithListResponse(run.Run{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listRuns route", forge.Error(err))
	}

	if err := g.GET("/runs/:runId", a.getRun,
		forge.WithSummary("Get run"),
		forge.WithDescription("Returns a run with its source and mapped payloads and the target's response."),
		forge.WithOperationID("getRun"),
		forge.WithResponseSchema(http.StatusOK, "Run details", run.Run{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getRun route", forge.Error(err))
	}
}

func (a *ForgeAPI) listRuns(ctx forge.Context, req *ListRunsForgeRequest) ([]*run.Run, error) {
	opts := run.ListOpts{
		Offset: req.Offset,
		Limit:  req.Limit,
		Status: run.Status(req.Status),
	}
	if req.RouteID != "" {
		routeID, err := id.ParseRouteID(req.RouteID)
		if err != nil {
			return nil, forge.BadRequest("invalid route_id")
		}
		opts.RouteID = &routeID
	}

	return a.listRunsWith(ctx, opts)
}

func (a *ForgeAPI) listRunsWith(ctx forge.Context, opts run.ListOpts) ([]*run.Run, error) {
	if opts.Limit == 0 {
		opts.Limit = 100
	}

	runs, err := a.conduit.Store().ListRuns(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return runs, nil
}

func (a *ForgeAPI) getRun(ctx forge.Context, req *GetRunForgeRequest) (*run.Run, error) {
	runID, err := id.ParseRunID(req.RunID)
	if err != nil {
		return nil, forge.BadRequest("invalid run ID")
	}

	rn, getErr := a.conduit.Store().GetRun(ctx.Context(), runID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return rn, nil
}

// ---------------------------------------------------------------------------
// Dead letter routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerDeadLetterRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("dead-letters"))

	if err := g.GET("/dead-letters", a.listDeadLetters,
		forge.WithSummary("List dead letters"),
		forge.WithDescription("Returns dead-lettered runs newest first."),
		forge.WithOperationID("listDeadLetters"),
		forge.WithRequestSchema(ListDeadLettersForgeRequest{}),
		forge.WithListResponse(deadletter.Entry{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listDeadLetters route", forge.Error(err))
	}

	if err := g.GET("/dead-letters/:deadLetterId", a.getDeadLetter,
		forge.WithSummary("Get dead letter"),
		forge.WithDescription("Returns a dead letter entry."),
		forge.WithOperationID("getDeadLetter"),
		forge.WithResponseSchema(http.StatusOK, "Dead letter details", deadletter.Entry{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getDeadLetter route", forge.Error(err))
	}

	if err := g.POST("/dead-letters/:deadLetterId/replay", a.replayDeadLetter,
		forge.WithSummary("Replay dead letter"),
		forge.WithDescription("Re-dispatches the entry's source payload on its route. Only a successful replay marks the entry REPLAYED."),
		forge.WithOperationID("replayDeadLetter"),
		forge.WithRequestSchema(ReplayDeadLetterForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Replay outcome", ReplayResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register replayDeadLetter route", forge.Error(err))
	}

	if err := g.DELETE("/dead-letters", a.purgeDeadLetters,
		forge.WithSummary("Purge dead letters"),
		forge.WithDescription("Removes replayed entries created before the given time."),
		forge.WithOperationID("purgeDeadLetters"),
		forge.WithRequestSchema(PurgeDeadLettersForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Purged count", PurgeForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register purgeDeadLetters route", forge.Error(err))
	}
}

func (a *ForgeAPI) listDeadLetters(ctx forge.Context, req *ListDeadLettersForgeRequest) ([]*deadletter.Entry, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 100
	}

	opts := deadletter.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
		Status: deadletter.Status(req.Status),
	}
	if req.RouteID != "" {
		routeID, err := id.ParseRouteID(req.RouteID)
		if err != nil {
			return nil, forge.BadRequest("invalid route_id")
		}
		opts.RouteID = &routeID
	}

	var err error
	if opts.From, err = parseOptionalTime(req.From); err != nil {
		return nil, forge.BadRequest("invalid 'from' time format, expected RFC3339")
	}
	if opts.To, err = parseOptionalTime(req.To); err != nil {
		return nil, forge.BadRequest("invalid 'to' time format, expected RFC3339")
	}

	entries, err := a.conduit.DeadLetters().List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return entries, nil
}

func (a *ForgeAPI) getDeadLetter(ctx forge.Context, req *DeadLetterForgeRequest) (*deadletter.Entry, error) {
	entryID, err := id.ParseDeadLetterID(req.DeadLetterID)
	if err != nil {
		return nil, forge.BadRequest("invalid dead letter ID")
	}

	entry, getErr := a.conduit.DeadLetters().Get(ctx.Context(), entryID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return entry, nil
}

func (a *ForgeAPI) replayDeadLetter(ctx forge.Context, req *ReplayDeadLetterForgeRequest) (*ReplayResponse, error) {
	entryID, err := id.ParseDeadLetterID(req.DeadLetterID)
	if err != nil {
		return nil, forge.BadRequest("invalid dead letter ID")
	}

	rn, entry, replayErr := a.conduit.ReplayDeadLetter(ctx.Context(), entryID, req.CorrelationID)
	if entry == nil {
		return nil, mapError(replayErr)
	}

	resp := &ReplayResponse{
		DeadLetterID: entry.ID.String(),
		ReplayCount:  entry.ReplayCount,
	}
	if rn != nil {
		resp.RunID = rn.ID.String()
		resp.Status = rn.Status
	}
	if replayErr == nil {
		return resp, nil
	}

	resp.Error = replayErr.Error()
	if writeErr := ctx.JSON(dispatchStatus(replayErr), resp); writeErr != nil {
		return nil, mapError(writeErr)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) purgeDeadLetters(ctx forge.Context, req *PurgeDeadLettersForgeRequest) (*PurgeForgeResponse, error) {
	before, err := parseOptionalTime(req.Before)
	if err != nil || before == nil {
		return nil, forge.BadRequest("before must be an RFC3339 timestamp")
	}

	n, purgeErr := a.conduit.DeadLetters().Purge(ctx.Context(), *before)
	if purgeErr != nil {
		return nil, mapError(purgeErr)
	}

	return &PurgeForgeResponse{Purged: n}, nil
}

// ---------------------------------------------------------------------------
// Ops routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerOpsRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("ops"))

	if err := g.GET("/metrics", a.getMetrics,
		forge.WithSummary("Get run metrics"),
		forge.WithDescription("Returns run counts, pending dead letters and the success rate."),
		forge.WithOperationID("getMetrics"),
		forge.WithResponseSchema(http.StatusOK, "Run metrics", conduit.Summary{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getMetrics route", forge.Error(err))
	}

	if err := g.GET("/circuits/:key", a.getCircuit,
		forge.WithSummary("Get circuit state"),
		forge.WithDescription("Returns the breaker state for a circuit key."),
		forge.WithOperationID("getCircuit"),
		forge.WithResponseSchema(http.StatusOK, "Circuit state", circuit.Snapshot{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getCircuit route", forge.Error(err))
	}

	if err := g.POST("/circuits/:key/reset", a.resetCircuit,
		forge.WithSummary("Reset circuit"),
		forge.WithDescription("Closes the circuit for a key and clears its rate-limit bucket."),
		forge.WithOperationID("resetCircuit"),
		forge.WithResponseSchema(http.StatusOK, "Circuit state", circuit.Snapshot{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register resetCircuit route", forge.Error(err))
	}
}

func (a *ForgeAPI) getMetrics(ctx forge.Context, _ *MetricsForgeRequest) (*conduit.Summary, error) {
	summary, err := a.conduit.Summary(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return summary, nil
}

func (a *ForgeAPI) getCircuit(_ forge.Context, req *CircuitForgeRequest) (*circuit.Snapshot, error) {
	snap := a.conduit.Circuit(req.Key)
	return &snap, nil
}

func (a *ForgeAPI) resetCircuit(ctx forge.Context, req *CircuitForgeRequest) (*circuit.Snapshot, error) {
	snap := a.conduit.ResetCircuit(ctx.Context(), req.Key)
	return &snap, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// rawPayload keeps an absent payload nil instead of an empty document.
func rawPayload(p json.RawMessage) any {
	if len(p) == 0 {
		return nil
	}
	return p
}

func parseOptionalTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

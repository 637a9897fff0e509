package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/delivery"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/run"
	"github.com/xraph/conduit/signature"
)

// HeaderIdempotencyKey carries the caller's idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

// DispatchResponse is returned by every dispatch entry point.
type DispatchResponse struct {
	RunID          string     `json:"run_id"`
	RouteID        string     `json:"route_id"`
	Status         run.Status `json:"status"`
	ResponseStatus int        `json:"response_status,omitempty"`
	CorrelationID  string     `json:"correlation_id,omitempty"`
	Error          string     `json:"error,omitempty"`
}

func newDispatchResponse(r *run.Run) DispatchResponse {
	return DispatchResponse{
		RunID:          r.ID.String(),
		RouteID:        r.RouteID.String(),
		Status:         r.Status,
		ResponseStatus: r.ResponseStatus,
		CorrelationID:  r.CorrelationID,
		Error:          r.Error,
	}
}

func (h *Handler) runRoute(w http.ResponseWriter, r *http.Request) {
	routeID, err := id.ParseRouteID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid route ID")
		return
	}

	body, ok := readPayload(w, r)
	if !ok {
		return
	}

	async, err := queryBool(r, "async")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid async flag")
		return
	}

	opts := dispatchOpts(r)
	if async != nil && *async {
		rn, err := h.conduit.Submit(r.Context(), routeID, body, opts)
		h.writeDispatch(w, rn, err)
		return
	}

	rn, err := h.conduit.Dispatch(r.Context(), routeID, body, opts)
	h.writeDispatch(w, rn, err)
}

// receiveWebhook dispatches an inbound webhook. When the route's source
// carries a secret, the request must be signed with it.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	routeID, err := id.ParseRouteID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid route ID")
		return
	}

	rt, err := h.conduit.Routes().Get(r.Context(), routeID)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	body, ok := readPayload(w, r)
	if !ok {
		return
	}

	if secret := rt.Source.Secret; secret != "" {
		err := signature.VerifyHeaders(body, secret,
			r.Header.Get(signature.HeaderSignature),
			r.Header.Get(signature.HeaderTimestamp),
			signature.DefaultTolerance, h.now())
		if err != nil {
			h.logger.WarnContext(r.Context(), "webhook signature rejected",
				"route_id", routeID.String(), "error", err)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	rn, err := h.conduit.Dispatch(r.Context(), routeID, body, dispatchOpts(r))
	h.writeDispatch(w, rn, err)
}

func (h *Handler) receiveEvent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("event")
	if name == "" {
		writeError(w, http.StatusBadRequest, "event name is required")
		return
	}

	body, ok := readPayload(w, r)
	if !ok {
		return
	}

	rn, err := h.conduit.DispatchEvent(r.Context(), name, body, dispatchOpts(r))
	h.writeDispatch(w, rn, err)
}

// writeDispatch reports a dispatch outcome. A failed run surfaces as 502
// with its ID so the caller can inspect it.
func (h *Handler) writeDispatch(w http.ResponseWriter, rn *run.Run, err error) {
	if err == nil {
		writeJSON(w, http.StatusAccepted, newDispatchResponse(rn))
		return
	}

	if rn == nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	resp := newDispatchResponse(rn)
	resp.Error = err.Error()
	writeJSON(w, dispatchStatus(err), resp)
}

// dispatchStatus maps a dispatch error that left a run behind. A run that
// failed downstream is a bad gateway.
func dispatchStatus(err error) int {
	status := errorStatus(err)
	switch {
	case errors.Is(err, conduit.ErrPoolStopped):
		return http.StatusServiceUnavailable
	case status == http.StatusInternalServerError:
		return http.StatusBadGateway
	}
	return status
}

func dispatchOpts(r *http.Request) conduit.DispatchOpts {
	return conduit.DispatchOpts{
		CorrelationID:  r.Header.Get(delivery.HeaderRequestID),
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	}
}

// readPayload reads and checks the request body. It writes the error
// response itself and reports false when the body is unusable.
func readPayload(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return nil, false
	}
	if len(body) > 0 && !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return nil, false
	}
	return body, true
}

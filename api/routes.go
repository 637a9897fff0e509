package api

import (
	"net/http"

	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/run"
)

func (h *Handler) createRoute(w http.ResponseWriter, r *http.Request) {
	in := route.NewInput()
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rt, err := h.conduit.Routes().Create(r.Context(), in)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, rt)
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	enabled, err := queryBool(r, "enabled")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid enabled filter")
		return
	}

	routes, err := h.conduit.Routes().List(r.Context(), route.ListOpts{
		Offset:  queryInt(r, "offset", 0),
		Limit:   queryInt(r, "limit", 50),
		Enabled: enabled,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, routes)
}

func (h *Handler) getRoute(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) deleteRoute(w http.ResponseWriter, r *http.Request) {
	routeID, err := id.ParseRouteID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid route ID")
		return
	}

	if err := h.conduit.Routes().Delete(r.Context(), routeID); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableRoute(w http.ResponseWriter, r *http.Request) {
	h.setRouteEnabled(w, r, true)
}

func (h *Handler) disableRoute(w http.ResponseWriter, r *http.Request) {
	h.setRouteEnabled(w, r, false)
}

func (h *Handler) setRouteEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	routeID, err := id.ParseRouteID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid route ID")
		return
	}

	rt, err := h.conduit.Routes().SetEnabled(r.Context(), routeID, enabled)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) listRouteRuns(w http.ResponseWriter, r *http.Request) {
	routeID, err := id.ParseRouteID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid route ID")
		return
	}

	runs, err := h.conduit.Store().ListRuns(r.Context(), run.ListOpts{
		Offset:  queryInt(r, "offset", 0),
		Limit:   queryInt(r, "limit", 100),
		RouteID: &routeID,
		Status:  run.Status(queryParam(r, "status")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

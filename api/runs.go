package api

import (
	"net/http"

	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/run"
)

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	opts := run.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 100),
		Status: run.Status(queryParam(r, "status")),
	}

	if v := queryParam(r, "route_id"); v != "" {
		routeID, err := id.ParseRouteID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid route_id")
			return
		}
		opts.RouteID = &routeID
	}

	runs, err := h.conduit.Store().ListRuns(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	runID, err := id.ParseRunID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	rn, err := h.conduit.Store().GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rn)
}

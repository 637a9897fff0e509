package api

import (
	"net/http"

	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/delivery"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/run"
)

// ReplayResponse is returned by the replay endpoint.
type ReplayResponse struct {
	RunID        string     `json:"run_id,omitempty"`
	Status       run.Status `json:"status,omitempty"`
	DeadLetterID string     `json:"dead_letter_id"`
	ReplayCount  int        `json:"replay_count"`
	Error        string     `json:"error,omitempty"`
}

func (h *Handler) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	opts := deadletter.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 100),
		Status: deadletter.Status(queryParam(r, "status")),
	}

	if v := queryParam(r, "route_id"); v != "" {
		routeID, err := id.ParseRouteID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid route_id")
			return
		}
		opts.RouteID = &routeID
	}

	var err error
	if opts.From, err = queryTime(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	if opts.To, err = queryTime(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	entries, err := h.conduit.DeadLetters().List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) getDeadLetter(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDeadLetterID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dead letter ID")
		return
	}

	entry, err := h.conduit.DeadLetters().Get(r.Context(), entryID)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) replayDeadLetter(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDeadLetterID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dead letter ID")
		return
	}

	rn, entry, err := h.conduit.ReplayDeadLetter(r.Context(), entryID, r.Header.Get(delivery.HeaderRequestID))
	if entry == nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	resp := ReplayResponse{
		DeadLetterID: entry.ID.String(),
		ReplayCount:  entry.ReplayCount,
	}
	if rn != nil {
		resp.RunID = rn.ID.String()
		resp.Status = rn.Status
	}

	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, dispatchStatus(err), resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// purgeDeadLetters removes replayed entries created before the required
// "before" timestamp.
func (h *Handler) purgeDeadLetters(w http.ResponseWriter, r *http.Request) {
	before, err := queryTime(r, "before")
	if err != nil || before == nil {
		writeError(w, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
		return
	}

	n, err := h.conduit.DeadLetters().Purge(r.Context(), *before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"purged": n})
}

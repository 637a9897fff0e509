package api

import "net/http"

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.conduit.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) getCircuit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.conduit.Circuit(r.PathValue("key")))
}

func (h *Handler) resetCircuit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.conduit.ResetCircuit(r.Context(), r.PathValue("key")))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.conduit.Store().Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

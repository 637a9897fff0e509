// Package api provides the HTTP API for Conduit: route management, dispatch
// entry points, runs, dead letters and operational endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/route"
)

// maxBodyBytes caps inbound payloads.
const maxBodyBytes = 1 << 20

// Handler is the root HTTP handler for the Conduit API.
type Handler struct {
	conduit *conduit.Conduit
	logger  *slog.Logger
	mux     *http.ServeMux
	now     func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(c *conduit.Conduit, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		conduit: c,
		logger:  logger,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Routes
	h.mux.HandleFunc("POST /routes", h.createRoute)
	h.mux.HandleFunc("GET /routes", h.listRoutes)
	h.mux.HandleFunc("GET /routes/{id}", h.getRoute)
	h.mux.HandleFunc("DELETE /routes/{id}", h.deleteRoute)
	h.mux.HandleFunc("PATCH /routes/{id}/enable", h.enableRoute)
	h.mux.HandleFunc("PATCH /routes/{id}/disable", h.disableRoute)
	h.mux.HandleFunc("GET /routes/{id}/runs", h.listRouteRuns)

	// Dispatch
	h.mux.HandleFunc("POST /routes/{id}/run", h.runRoute)
	h.mux.HandleFunc("POST /webhooks/{id}", h.receiveWebhook)
	h.mux.HandleFunc("POST /events/{event...}", h.receiveEvent)

	// Runs
	h.mux.HandleFunc("GET /runs", h.listRuns)
	h.mux.HandleFunc("GET /runs/{id}", h.getRun)

	// Dead letters
	h.mux.HandleFunc("GET /dead-letters", h.listDeadLetters)
	h.mux.HandleFunc("GET /dead-letters/{id}", h.getDeadLetter)
	h.mux.HandleFunc("POST /dead-letters/{id}/replay", h.replayDeadLetter)
	h.mux.HandleFunc("DELETE /dead-letters", h.purgeDeadLetters)

	// Ops
	h.mux.HandleFunc("GET /metrics", h.getMetrics)
	h.mux.HandleFunc("GET /circuits/{key}", h.getCircuit)
	h.mux.HandleFunc("POST /circuits/{key}/reset", h.resetCircuit)
	h.mux.HandleFunc("GET /health", h.health)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.InfoContext(r.Context(), "api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	var verr *route.ValidationError
	switch {
	case errors.Is(err, conduit.ErrRouteNotFound),
		errors.Is(err, conduit.ErrRunNotFound),
		errors.Is(err, conduit.ErrDeadLetterNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr), errors.Is(err, conduit.ErrPayloadValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, conduit.ErrAlreadyReplayed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// queryBool returns a pointer to a parsed boolean, or nil when absent.
func queryBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// queryTime parses an RFC 3339 query parameter, or returns nil when absent.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

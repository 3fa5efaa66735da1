// Package apilog exposes the audit-log query and correction endpoints.
package apilog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"seabridge/ms_odex_gateway/internal/application/gateway"
	"seabridge/ms_odex_gateway/internal/core/apilog"
	ctxutil "seabridge/ms_odex_gateway/internal/infrastructure/context"
	httperrors "seabridge/ms_odex_gateway/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the gateway's log query surface.
type Handler struct {
	service *gateway.Service
	log     *slog.Logger
}

// NewHandler creates a new audit-log HTTP handler.
func NewHandler(service *gateway.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// GetByID handles GET /api/v1/logs/{id} requests.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"log id is required"}, nil)
		return
	}

	rec, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// List handles GET /api/v1/logs requests. All filters are optional and
// combine with AND; results are newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := gateway.ListQuery{
		Module:      q.Get("module"),
		Status:      q.Get("status"),
		ContainerNo: q.Get("containerNo"),
		BookingNo:   q.Get("bookingNo"),
		Page:        parseIntParam(q.Get("page")),
		Limit:       parseIntParam(q.Get("limit")),
	}

	if raw := q.Get("dateFrom"); raw != "" {
		t, err := parseDateParam(raw, false)
		if err != nil {
			httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"dateFrom must be YYYY-MM-DD or RFC 3339"}, nil)
			return
		}
		query.DateFrom = &t
	}
	if raw := q.Get("dateTo"); raw != "" {
		t, err := parseDateParam(raw, true)
		if err != nil {
			httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"dateTo must be YYYY-MM-DD or RFC 3339"}, nil)
			return
		}
		query.DateTo = &t
	}

	result, err := h.service.List(r.Context(), query)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListByModule handles GET /api/v1/logs/module/{module} requests.
func (h *Handler) ListByModule(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	q := r.URL.Query()

	result, err := h.service.ListByModule(r.Context(), apilog.ModuleName(module),
		parseIntParam(q.Get("page")), parseIntParam(q.Get("limit")))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Stats handles GET /api/v1/logs/stats requests.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.ModuleCounts(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"modules": counts})
}

// EditRequest is the body for POST /api/v1/logs/{id}/edit.
type EditRequest struct {
	Headers map[string]string `json:"headers"`
	Body    map[string]any    `json:"body"`
}

// Edit handles POST /api/v1/logs/{id}/edit requests. The patch is merged
// into the stored request and submitted as a new record; the original is
// preserved untouched.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var reqBody EditRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"request body is not valid JSON"}, nil)
		return
	}
	if len(reqBody.Headers) == 0 && len(reqBody.Body) == 0 {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"at least one of headers or body must be provided"}, nil)
		return
	}

	out, err := h.service.EditFields(r.Context(), id, gateway.Patch{
		Headers: reqBody.Headers,
		Body:    reqBody.Body,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	// The record was written either way, so a failed carrier call is
	// still a 200 with success=false rather than an HTTP error.
	writeJSON(w, http.StatusOK, out)
}

// FullUpdateRequest is the body for PUT /api/v1/logs/{id}.
type FullUpdateRequest struct {
	ModuleName string            `json:"moduleName"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	Body       map[string]any    `json:"body"`
}

// FullUpdate handles PUT /api/v1/logs/{id} requests. The supplied request
// replaces the stored one wholesale in a new lineage record.
func (h *Handler) FullUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var reqBody FullUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"request body is not valid JSON"}, nil)
		return
	}
	if reqBody.URL == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"url is required"}, nil)
		return
	}

	out, err := h.service.FullUpdate(r.Context(), id, apilog.RequestInfo{
		URL:     reqBody.URL,
		Method:  reqBody.Method,
		Headers: reqBody.Headers,
		Body:    reqBody.Body,
	}, apilog.ModuleName(reqBody.ModuleName))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// handleError maps domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := ctxutil.GetCorrelationID(r.Context())

	var statusCode int
	switch {
	case errors.Is(err, apilog.ErrNotFound):
		statusCode = http.StatusNotFound
		httperrors.WriteError(w, statusCode, "Not Found", []string{"log record not found"}, nil)
	case errors.Is(err, apilog.ErrVersionConflict):
		statusCode = http.StatusConflict
		httperrors.WriteError(w, statusCode, "Conflict", []string{"the record was modified concurrently, retry with fresh data"}, nil)
	case apilog.IsValidation(err):
		statusCode = http.StatusBadRequest
		httperrors.WriteError(w, statusCode, "Validation Error", []string{err.Error()}, nil)
	default:
		statusCode = http.StatusInternalServerError
		httperrors.WriteError(w, statusCode, "Internal Server Error", []string{"an internal error has occurred"}, nil)
	}

	logAttrs := []any{
		"error", err,
		"status_code", statusCode,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if correlationID != "" {
		logAttrs = append(logAttrs, "correlation_id", correlationID)
	}

	if statusCode >= 500 {
		h.log.Error("request failed", logAttrs...)
	} else {
		h.log.Warn("request failed", logAttrs...)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntParam(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// parseDateParam accepts a bare date or a full RFC 3339 timestamp. A bare
// dateTo is widened to the end of its day so the range is inclusive.
func parseDateParam(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t.UTC(), nil
}

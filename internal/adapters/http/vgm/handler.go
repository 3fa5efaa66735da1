// Package vgm exposes the VGM submission, status and resubmission endpoints.
package vgm

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"seabridge/ms_odex_gateway/internal/application/gateway"
	"seabridge/ms_odex_gateway/internal/core/apilog"
	httperrors "seabridge/ms_odex_gateway/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the gateway's VGM flows.
type Handler struct {
	service *gateway.Service
	baseURL string
	log     *slog.Logger
}

// NewHandler creates a new VGM HTTP handler. baseURL is the ODeX API root.
func NewHandler(service *gateway.Service, baseURL string, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Submit handles POST /api/v1/vgm requests. The payload is forwarded to
// the carrier as-is and logged under the VGM submission module.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"request body is not valid JSON"}, nil)
		return
	}
	if s, _ := body["cntnrNo"].(string); s == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"cntnrNo is required"}, nil)
		return
	}

	out, err := h.service.Forward(r.Context(), apilog.ModuleVGMSubmission, apilog.RequestInfo{
		URL:    h.baseURL + "/saveVgmWb",
		Method: http.MethodPost,
		Body:   body,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// Status handles POST /api/v1/vgm/status requests.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"request body is not valid JSON"}, nil)
		return
	}
	cntnrNo, _ := body["cntnrNo"].(string)
	bookNo, _ := body["bookNo"].(string)
	if cntnrNo == "" && bookNo == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"cntnrNo or bookNo is required"}, nil)
		return
	}

	out, err := h.service.Forward(r.Context(), apilog.ModuleVGMStatus, apilog.RequestInfo{
		URL:    h.baseURL + "/getVgmStatus",
		Method: http.MethodPost,
		Body:   body,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// ResubmitRequest is the body for POST /api/v1/vgm/{logId}/resubmit. Both
// fields are optional; provided keys override the stored request.
type ResubmitRequest struct {
	Headers map[string]string `json:"headers"`
	Body    map[string]any    `json:"body"`
}

// Resubmit handles POST /api/v1/vgm/{logId}/resubmit requests. The stored
// record itself is corrected and re-dispatched; its retry counter grows
// with every attempt.
func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	logID := chi.URLParam(r, "logId")

	var reqBody ResubmitRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"request body is not valid JSON"}, nil)
			return
		}
	}

	out, err := h.service.ResubmitInPlace(r.Context(), logID, gateway.Patch{
		Headers: reqBody.Headers,
		Body:    reqBody.Body,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apilog.ErrNotFound):
		httperrors.WriteError(w, http.StatusNotFound, "Not Found", []string{"log record not found"}, h.log)
	case errors.Is(err, apilog.ErrVersionConflict):
		httperrors.WriteError(w, http.StatusConflict, "Conflict", []string{"the record was modified concurrently, retry with fresh data"}, h.log)
	case apilog.IsValidation(err):
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{err.Error()}, h.log)
	default:
		h.log.Error("vgm request failed", "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Internal Server Error", []string{"an internal error has occurred"}, h.log)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// Package form13 exposes the Form 13 (gate-in permission) submission endpoint.
package form13

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"seabridge/ms_odex_gateway/internal/application/gateway"
	"seabridge/ms_odex_gateway/internal/core/apilog"
	httperrors "seabridge/ms_odex_gateway/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the gateway's Form 13 flow.
type Handler struct {
	service *gateway.Service
	baseURL string
	log     *slog.Logger
}

// NewHandler creates a new Form 13 HTTP handler. baseURL is the ODeX API root.
func NewHandler(service *gateway.Service, baseURL string, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Submit handles POST /api/v1/form13 requests.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"request body is not valid JSON"}, nil)
		return
	}
	if s, _ := body["bookNo"].(string); s == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"bookNo is required"}, nil)
		return
	}

	out, err := h.service.Forward(r.Context(), apilog.ModuleForm13Submission, apilog.RequestInfo{
		URL:    h.baseURL + "/saveForm13",
		Method: http.MethodPost,
		Body:   body,
	})
	if err != nil {
		if apilog.IsValidation(err) {
			httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{err.Error()}, h.log)
			return
		}
		h.log.Error("form13 request failed", "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Internal Server Error", []string{"an internal error has occurred"}, h.log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}

// Package auth exposes the carrier authentication pass-through endpoint.
package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"seabridge/ms_odex_gateway/internal/application/gateway"
	"seabridge/ms_odex_gateway/internal/core/apilog"
	httperrors "seabridge/ms_odex_gateway/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the gateway's authorization flow. The
// credentials payload is forwarded verbatim and the exchange is logged under
// the authorization module like any other carrier call.
type Handler struct {
	service *gateway.Service
	baseURL string
	log     *slog.Logger
}

// NewHandler creates a new auth HTTP handler. baseURL is the ODeX API root.
func NewHandler(service *gateway.Service, baseURL string, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Login handles POST /api/v1/auth/login requests.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"request body is not valid JSON"}, nil)
		return
	}
	if len(body) == 0 {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{"credentials payload is required"}, nil)
		return
	}

	out, err := h.service.Forward(r.Context(), apilog.ModuleAuthorization, apilog.RequestInfo{
		URL:    h.baseURL + "/authenticate",
		Method: http.MethodPost,
		Body:   body,
	})
	if err != nil {
		if apilog.IsValidation(err) {
			httperrors.WriteError(w, http.StatusBadRequest, "Validation Error", []string{err.Error()}, h.log)
			return
		}
		h.log.Error("auth request failed", "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Internal Server Error", []string{"an internal error has occurred"}, h.log)
		return
	}

	// Failed credentials surface as success=false with the carrier's
	// message; the endpoint itself answered.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}

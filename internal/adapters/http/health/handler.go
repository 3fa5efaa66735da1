// Package health exposes the availability endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Status is the availability snapshot returned by the endpoint.
type Status struct {
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	StartedAt   time.Time `json:"startedAt"`
	Uptime      string    `json:"uptime"`
	UptimeSecs  int64     `json:"uptimeSecs"`
}

// Handler serves health checks. The pool may be nil in tests.
type Handler struct {
	meta      Metadata
	pool      *pgxpool.Pool
	startedAt time.Time
}

func NewHandler(meta Metadata, pool *pgxpool.Pool) *Handler {
	return &Handler{
		meta:      meta,
		pool:      pool,
		startedAt: time.Now().UTC(),
	}
}

// Status handles GET /health. A failing database ping degrades the report
// but the endpoint itself stays reachable.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	response := Status{
		Service:     h.meta.Service,
		Version:     h.meta.Version,
		Environment: h.meta.Environment,
		Status:      "UP",
		Database:    "UP",
		StartedAt:   h.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}

	statusCode := http.StatusOK
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			response.Status = "DEGRADED"
			response.Database = "DOWN"
			statusCode = http.StatusServiceUnavailable
		}
	} else {
		response.Database = "UNCONFIGURED"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

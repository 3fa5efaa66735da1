// Package gateway orchestrates the log-and-forward cycle: every outbound
// carrier call is recorded as pending before dispatch and updated with the
// outcome once the call resolves.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"seabridge/ms_odex_gateway/internal/core/apilog"
	"seabridge/ms_odex_gateway/internal/core/carrier"
	"seabridge/ms_odex_gateway/internal/infrastructure/metrics"
)

// Config holds tunables for the gateway service.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Service is the logging gateway. It owns the ordering guarantee:
// pending-record write, then the carrier call, then the outcome write.
type Service struct {
	store           apilog.Repository
	forwarder       carrier.Forwarder
	log             *slog.Logger
	metrics         *metrics.Carrier
	defaultPageSize int
	maxPageSize     int
}

// NewService creates a gateway service. The metrics argument may be nil.
func NewService(store apilog.Repository, forwarder carrier.Forwarder, log *slog.Logger, m *metrics.Carrier, cfg Config) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = 100
	}
	return &Service{
		store:           store,
		forwarder:       forwarder,
		log:             log,
		metrics:         m,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
	}
}

// Outcome is what callers receive from any forwarding flow.
type Outcome struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	LogID   string         `json:"logId"`
}

// MutationOutcome extends Outcome with the lineage of an edit or full update.
type MutationOutcome struct {
	Outcome
	OriginalLogID string `json:"originalLogId"`
	NewLogID      string `json:"newLogId"`
}

// ResubmitOutcome is returned by the in-place resubmission flow. VgmID is
// the same record identity that was resubmitted.
type ResubmitOutcome struct {
	Outcome
	VgmID string `json:"vgmId"`
}

// Patch is a partial correction to a previously logged request. Patch keys
// win over the original on collision.
type Patch struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    map[string]any    `json:"body,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Forward creates a pending log record, dispatches the call, and records
// the outcome. If the pending write fails no call is attempted.
func (s *Service) Forward(ctx context.Context, module apilog.ModuleName, req apilog.RequestInfo) (*Outcome, error) {
	rec, err := s.store.Create(ctx, apilog.NewLog{ModuleName: module, Request: req})
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, rec), nil
}

// GetByID returns one log record or apilog.ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (*apilog.ApiLog, error) {
	return s.store.GetByID(ctx, id)
}

// EditFields merges a patch into a prior record's request and submits the
// result as a brand-new record pointing back via OriginalLogID. The
// original record is never mutated.
func (s *Service) EditFields(ctx context.Context, logID string, patch Patch) (*MutationOutcome, error) {
	orig, err := s.store.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}

	merged := mergeRequest(orig.Request, patch)
	rec, err := s.store.Create(ctx, apilog.NewLog{
		ModuleName:    orig.ModuleName,
		Request:       merged,
		OriginalLogID: orig.ID,
		Remarks:       fmt.Sprintf("Edited from log %s", orig.ID),
	})
	if err != nil {
		return nil, err
	}

	out := s.dispatch(ctx, rec)
	return &MutationOutcome{Outcome: *out, OriginalLogID: orig.ID, NewLogID: rec.ID}, nil
}

// FullUpdate submits a caller-supplied replacement request as a new record
// with the same lineage semantics as EditFields. Module and method default
// to the original's when omitted.
func (s *Service) FullUpdate(ctx context.Context, logID string, req apilog.RequestInfo, module apilog.ModuleName) (*MutationOutcome, error) {
	orig, err := s.store.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}

	if module == "" {
		module = orig.ModuleName
	}
	if req.Method == "" {
		req.Method = orig.Request.Method
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	rec, err := s.store.Create(ctx, apilog.NewLog{
		ModuleName:    module,
		Request:       req,
		OriginalLogID: orig.ID,
		Remarks:       fmt.Sprintf("Updated from log %s", orig.ID),
	})
	if err != nil {
		return nil, err
	}

	out := s.dispatch(ctx, rec)
	return &MutationOutcome{Outcome: *out, OriginalLogID: orig.ID, NewLogID: rec.ID}, nil
}

// ResubmitInPlace merges a patch into the same record, resets it to
// pending, bumps the retry counter, and re-dispatches. The reset is a
// version-checked write: a concurrent resubmission of the same record
// fails with apilog.ErrVersionConflict instead of silently racing.
func (s *Service) ResubmitInPlace(ctx context.Context, logID string, patch Patch) (*ResubmitOutcome, error) {
	orig, err := s.store.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}

	merged := mergeRequest(orig.Request, patch)
	if merged.URL == "" {
		return nil, &apilog.ValidationError{Field: "request.url", Message: "url is required"}
	}

	pending := apilog.StatusPending
	remarks := fmt.Sprintf("Resubmitted with corrected data (attempt %d)", orig.RetryCount+1)
	rec, err := s.store.UpdateByID(ctx, orig.ID, apilog.Update{
		Request:         &merged,
		Status:          &pending,
		Remarks:         &remarks,
		IncrementRetry:  true,
		ExpectedVersion: &orig.Version,
	})
	if err != nil {
		return nil, err
	}

	out := s.dispatch(ctx, rec)
	return &ResubmitOutcome{Outcome: *out, VgmID: rec.ID}, nil
}

// dispatch performs the call and records the outcome. The pending record
// already exists; from here on a store failure no longer cancels the
// caller's result, because the external call has happened.
func (s *Service) dispatch(ctx context.Context, rec *apilog.ApiLog) *Outcome {
	res := s.forwarder.Forward(ctx, carrier.Request{
		URL:     rec.Request.URL,
		Method:  rec.Request.Method,
		Headers: rec.Request.Headers,
		Body:    rec.Request.Body,
	})
	s.metrics.Observe(string(rec.ModuleName), res.Failed, res.TimeTakenMs)

	resp := &apilog.ResponseInfo{
		StatusCode:  res.StatusCode,
		Data:        res.Data,
		Headers:     res.Headers,
		TimeTakenMs: res.TimeTakenMs,
		Timestamp:   time.Now().UTC(),
	}

	out := &Outcome{LogID: rec.ID, Data: res.Data}
	upd := apilog.Update{Response: resp}
	if res.Failed {
		status := apilog.StatusFailed
		remarks := res.ErrorMsg
		upd.Status = &status
		upd.Remarks = &remarks
		out.Error = res.ErrorMsg
	} else {
		status := apilog.StatusSuccess
		upd.Status = &status
		out.Success = true
	}

	if _, err := s.store.UpdateByID(ctx, rec.ID, upd); err != nil {
		// The call already happened; the caller still gets its outcome.
		// The record stays pending, which is a reportable anomaly.
		s.log.Error("api log outcome write-back failed, record left pending",
			"log_id", rec.ID,
			"module", rec.ModuleName,
			"call_failed", res.Failed,
			"error", err,
		)
	}

	return out
}

// mergeRequest shallow-merges a patch into a copy of the original request.
func mergeRequest(orig apilog.RequestInfo, patch Patch) apilog.RequestInfo {
	merged := orig.Clone()
	for k, v := range patch.Headers {
		merged.Headers[k] = v
	}
	for k, v := range patch.Body {
		merged.Body[k] = v
	}
	merged.Timestamp = time.Now().UTC()
	return merged
}

package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"seabridge/ms_odex_gateway/internal/core/apilog"

	"github.com/google/uuid"
)

// MemStore is an in-memory apilog.Repository for tests. It mirrors the
// SQL store's semantics: atomic single-record writes, newest-first
// listing, substring filters, and optimistic version checks.
type MemStore struct {
	mu      sync.Mutex
	records map[string]*apilog.ApiLog
	seq     map[string]int
	nextSeq int

	// Error injectors. When set, the corresponding operation fails
	// without touching state.
	CreateErr error
	UpdateErr error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*apilog.ApiLog),
		seq:     make(map[string]int),
	}
}

// Create stores a new pending record.
func (s *MemStore) Create(ctx context.Context, n apilog.NewLog) (*apilog.ApiLog, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n.OriginalLogID != "" {
		if _, ok := s.records[n.OriginalLogID]; !ok {
			return nil, fmt.Errorf("original log %s: %w", n.OriginalLogID, apilog.ErrNotFound)
		}
	}

	now := time.Now().UTC()
	if n.Request.Timestamp.IsZero() {
		n.Request.Timestamp = now
	}

	rec := &apilog.ApiLog{
		ID:            uuid.NewString(),
		ModuleName:    n.ModuleName,
		Request:       n.Request.Clone(),
		Status:        apilog.StatusPending,
		Remarks:       n.Remarks,
		OriginalLogID: n.OriginalLogID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.records[rec.ID] = rec
	s.nextSeq++
	s.seq[rec.ID] = s.nextSeq

	return cloneLog(rec), nil
}

// SetCreatedAt backdates a record so tests can exercise date filters.
func (s *MemStore) SetCreatedAt(id string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.CreatedAt = t.UTC()
	}
}

// GetByID returns a copy of the record or apilog.ErrNotFound.
func (s *MemStore) GetByID(ctx context.Context, id string) (*apilog.ApiLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, apilog.ErrNotFound
	}
	return cloneLog(rec), nil
}

// UpdateByID applies a partial update with the same merge rules as the
// SQL store.
func (s *MemStore) UpdateByID(ctx context.Context, id string, upd apilog.Update) (*apilog.ApiLog, error) {
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, apilog.ErrNotFound
	}
	if upd.ExpectedVersion != nil && rec.Version != *upd.ExpectedVersion {
		return nil, apilog.ErrVersionConflict
	}

	if upd.Request != nil {
		rec.Request = upd.Request.Clone()
	}
	if upd.Response != nil {
		rec.Response = upd.Response.Clone()
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
		if *upd.Status == apilog.StatusPending {
			rec.Response = nil
		}
	}
	if upd.Remarks != nil {
		rec.Remarks = *upd.Remarks
	}
	if upd.IncrementRetry {
		rec.RetryCount++
	}
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()

	return cloneLog(rec), nil
}

// List returns matches newest first with the total count.
func (s *MemStore) List(ctx context.Context, f apilog.ListFilter, page, pageSize int) ([]apilog.ApiLog, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*apilog.ApiLog
	for _, rec := range s.records {
		if matchesFilter(rec, f) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return s.seq[matched[i].ID] > s.seq[matched[j].ID]
	})

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	out := make([]apilog.ApiLog, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, *cloneLog(rec))
	}
	return out, total, nil
}

// CountByModule returns the number of records for one module.
func (s *MemStore) CountByModule(ctx context.Context, m apilog.ModuleName) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.records {
		if rec.ModuleName == m {
			count++
		}
	}
	return count, nil
}

func matchesFilter(rec *apilog.ApiLog, f apilog.ListFilter) bool {
	if f.ModuleName != "" && rec.ModuleName != f.ModuleName {
		return false
	}
	if f.Status != "" {
		carrierStatus := ""
		if rec.Response != nil {
			if cs, ok := rec.Response.Data["cntnrStatus"].(string); ok {
				carrierStatus = cs
			}
		}
		if !containsFold(string(rec.Status), f.Status) && !containsFold(carrierStatus, f.Status) {
			return false
		}
	}
	if f.ContainerNo != "" && !containsFold(bodyString(rec, "cntnrNo"), f.ContainerNo) {
		return false
	}
	if f.BookingNo != "" && !containsFold(bodyString(rec, "bookNo"), f.BookingNo) {
		return false
	}
	if f.DateFrom != nil && rec.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && rec.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}

func bodyString(rec *apilog.ApiLog, key string) string {
	if v, ok := rec.Request.Body[key].(string); ok {
		return v
	}
	return ""
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func cloneLog(rec *apilog.ApiLog) *apilog.ApiLog {
	out := *rec
	out.Request = rec.Request.Clone()
	out.Response = rec.Response.Clone()
	return &out
}

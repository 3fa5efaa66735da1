package gateway

import (
	"context"
	"time"

	"seabridge/ms_odex_gateway/internal/core/apilog"
)

// ListQuery carries the optional listing predicates plus pagination. Empty
// strings and nil dates are excluded from the filter.
type ListQuery struct {
	Module      string
	Status      string
	ContainerNo string
	BookingNo   string
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	Limit       int
}

// LogView is the display-oriented projection used by tracking UIs:
// selected request-body fields flattened next to the record status, with
// the carrier-reported status shown in its place when present. The stored
// status is never rewritten by this substitution.
type LogView struct {
	ID            string    `json:"id"`
	ModuleName    string    `json:"moduleName"`
	ContainerNo   string    `json:"containerNo,omitempty"`
	BookingNo     string    `json:"bookingNo,omitempty"`
	Status        string    `json:"status"`
	StoredStatus  string    `json:"storedStatus"`
	CarrierStatus string    `json:"carrierStatus,omitempty"`
	RetryCount    int       `json:"retryCount"`
	Remarks       string    `json:"remarks,omitempty"`
	OriginalLogID string    `json:"originalLogId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ListResult is one page of projected records.
type ListResult struct {
	Logs       []LogView  `json:"logs"`
	Pagination Pagination `json:"pagination"`
}

// ModuleListResult is one page of raw records for a single module.
type ModuleListResult struct {
	Logs       []apilog.ApiLog `json:"logs"`
	Pagination Pagination      `json:"pagination"`
}

// List returns a filtered, paginated, projected view over the log store.
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	filter := apilog.ListFilter{
		Status:      q.Status,
		ContainerNo: q.ContainerNo,
		BookingNo:   q.BookingNo,
		DateFrom:    q.DateFrom,
		DateTo:      q.DateTo,
	}
	if q.Module != "" {
		module, err := apilog.ParseModuleName(q.Module)
		if err != nil {
			return nil, err
		}
		filter.ModuleName = module
	}

	page, limit := s.normalizePage(q.Page, q.Limit)
	records, total, err := s.store.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}

	views := make([]LogView, 0, len(records))
	for i := range records {
		views = append(views, projectLog(&records[i]))
	}

	return &ListResult{
		Logs:       views,
		Pagination: Pagination{Page: page, Limit: limit, Total: total, Pages: totalPages(total, limit)},
	}, nil
}

// ListByModule returns raw records for one module, newest first.
func (s *Service) ListByModule(ctx context.Context, module apilog.ModuleName, page, limit int) (*ModuleListResult, error) {
	if _, err := apilog.ParseModuleName(string(module)); err != nil {
		return nil, err
	}

	page, limit = s.normalizePage(page, limit)
	records, total, err := s.store.List(ctx, apilog.ListFilter{ModuleName: module}, page, limit)
	if err != nil {
		return nil, err
	}

	return &ModuleListResult{
		Logs:       records,
		Pagination: Pagination{Page: page, Limit: limit, Total: total, Pages: totalPages(total, limit)},
	}, nil
}

// ModuleCounts returns the number of log records per recognized module.
func (s *Service) ModuleCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 4)
	for _, m := range []apilog.ModuleName{
		apilog.ModuleVGMSubmission,
		apilog.ModuleVGMStatus,
		apilog.ModuleForm13Submission,
		apilog.ModuleAuthorization,
	} {
		n, err := s.store.CountByModule(ctx, m)
		if err != nil {
			return nil, err
		}
		counts[string(m)] = n
	}
	return counts, nil
}

func (s *Service) normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pages
}

func projectLog(rec *apilog.ApiLog) LogView {
	view := LogView{
		ID:            rec.ID,
		ModuleName:    string(rec.ModuleName),
		Status:        string(rec.Status),
		StoredStatus:  string(rec.Status),
		RetryCount:    rec.RetryCount,
		Remarks:       rec.Remarks,
		OriginalLogID: rec.OriginalLogID,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}

	if v, ok := rec.Request.Body["cntnrNo"].(string); ok {
		view.ContainerNo = v
	}
	if v, ok := rec.Request.Body["bookNo"].(string); ok {
		view.BookingNo = v
	}
	if rec.Response != nil {
		if cs, ok := rec.Response.Data["cntnrStatus"].(string); ok && cs != "" {
			view.CarrierStatus = cs
			// Carrier-reported status wins for display purposes only.
			view.Status = cs
		}
	}

	return view
}

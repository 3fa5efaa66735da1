package apilog

import (
	"context"
	"time"
)

// NewLog describes a record to be created. Status is always pending and
// retry count zero at creation; callers cannot override either.
type NewLog struct {
	ModuleName    ModuleName
	Request       RequestInfo
	OriginalLogID string
	Remarks       string
}

// Validate checks the closed module set and required transport fields,
// and normalizes nil header/body maps to empty ones.
func (n *NewLog) Validate() error {
	if _, err := ParseModuleName(string(n.ModuleName)); err != nil {
		return err
	}
	if n.Request.URL == "" {
		return &ValidationError{Field: "request.url", Message: "url is required"}
	}
	if n.Request.Method == "" {
		return &ValidationError{Field: "request.method", Message: "method is required"}
	}
	if n.Request.Headers == nil {
		n.Request.Headers = map[string]string{}
	}
	if n.Request.Body == nil {
		n.Request.Body = map[string]any{}
	}
	return nil
}

// Update is a partial, top-level merge into an existing record. Nil fields
// are left untouched. ExpectedVersion, when set, turns the write into a
// compare-and-swap that fails with ErrVersionConflict on mismatch.
type Update struct {
	Request         *RequestInfo
	Response        *ResponseInfo
	Status          *Status
	Remarks         *string
	IncrementRetry  bool
	ExpectedVersion *int64
}

// ListFilter holds the optional listing predicates. Zero values are
// excluded from the filter, never matched as empty strings.
type ListFilter struct {
	ModuleName  ModuleName
	Status      string
	ContainerNo string
	BookingNo   string
	DateFrom    *time.Time
	DateTo      *time.Time
}

// Repository defines durable CRUD over api log records.
type Repository interface {
	// Create persists a new record in pending state and returns it.
	Create(ctx context.Context, n NewLog) (*ApiLog, error)

	// GetByID returns the record or ErrNotFound.
	GetByID(ctx context.Context, id string) (*ApiLog, error)

	// UpdateByID applies a partial update and returns the updated record.
	UpdateByID(ctx context.Context, id string, upd Update) (*ApiLog, error)

	// List returns matching records ordered newest first, plus the total
	// match count for pagination. Page numbers are 1-indexed.
	List(ctx context.Context, f ListFilter, page, pageSize int) ([]ApiLog, int, error)

	// CountByModule returns the number of records for one module.
	CountByModule(ctx context.Context, m ModuleName) (int, error)
}

package postgres

import (
	"strings"
	"testing"
	"time"

	"seabridge/ms_odex_gateway/internal/core/apilog"
)

// The repository must satisfy the store contract the gateway depends on.
var _ apilog.Repository = (*Repository)(nil)

func TestBuildFilter_Empty(t *testing.T) {
	where, args := buildFilter(apilog.ListFilter{})
	if where != "" {
		t.Errorf("expected no WHERE clause, got %q", where)
	}
	if args != nil {
		t.Errorf("expected no args, got %v", args)
	}
}

func TestBuildFilter_Module(t *testing.T) {
	where, args := buildFilter(apilog.ListFilter{ModuleName: apilog.ModuleVGMSubmission})
	if where != " WHERE module_name = $1" {
		t.Errorf("unexpected clause: %q", where)
	}
	if len(args) != 1 || args[0] != "VGM_SUBMISSION" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestBuildFilter_StatusMatchesCarrierField(t *testing.T) {
	where, args := buildFilter(apilog.ListFilter{Status: "verified"})
	if !strings.Contains(where, "status ILIKE '%' || $1 || '%'") {
		t.Errorf("expected stored-status predicate, got %q", where)
	}
	if !strings.Contains(where, "response -> 'data' ->> 'cntnrStatus' ILIKE '%' || $1 || '%'") {
		t.Errorf("expected carrier-status predicate, got %q", where)
	}
	// One bind value serves both sides of the OR.
	if len(args) != 1 || args[0] != "verified" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestBuildFilter_Combined(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	where, args := buildFilter(apilog.ListFilter{
		ModuleName:  apilog.ModuleVGMSubmission,
		ContainerNo: "MSKU",
		BookingNo:   "BK001",
		DateFrom:    &from,
		DateTo:      &to,
	})

	wantParts := []string{
		"module_name = $1",
		"request -> 'body' ->> 'cntnrNo' ILIKE '%' || $2 || '%'",
		"request -> 'body' ->> 'bookNo' ILIKE '%' || $3 || '%'",
		"created_at >= $4",
		"created_at <= $5",
	}
	for _, part := range wantParts {
		if !strings.Contains(where, part) {
			t.Errorf("missing predicate %q in %q", part, where)
		}
	}
	if strings.Count(where, " AND ") != 4 {
		t.Errorf("expected predicates joined with AND, got %q", where)
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if args[3] != from || args[4] != to {
		t.Errorf("expected date bounds as bind values, got %v", args[3:])
	}
}

func TestNullableID(t *testing.T) {
	if nullableID("") != nil {
		t.Error("expected nil for empty id")
	}
	if p := nullableID("abc"); p == nil || *p != "abc" {
		t.Error("expected pointer to the id value")
	}
}

type fakeRow struct {
	values []any
}

func (f *fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch out := d.(type) {
		case *string:
			if s, ok := f.values[i].(string); ok {
				*out = s
			}
		case **string:
			if s, ok := f.values[i].(*string); ok {
				*out = s
			}
		case *[]byte:
			if b, ok := f.values[i].([]byte); ok {
				*out = b
			}
		case *int:
			if n, ok := f.values[i].(int); ok {
				*out = n
			}
		case *int64:
			if n, ok := f.values[i].(int64); ok {
				*out = n
			}
		case *time.Time:
			if ts, ok := f.values[i].(time.Time); ok {
				*out = ts
			}
		case *apilog.ModuleName:
			if s, ok := f.values[i].(string); ok {
				*out = apilog.ModuleName(s)
			}
		case *apilog.Status:
			if s, ok := f.values[i].(string); ok {
				*out = apilog.Status(s)
			}
		}
	}
	return nil
}

func TestScanLog(t *testing.T) {
	now := time.Now().UTC()
	original := "0f1e2d3c-0000-4000-8000-000000000000"
	row := &fakeRow{values: []any{
		"a1b2c3d4-0000-4000-8000-000000000000",
		"VGM_SUBMISSION",
		[]byte(`{"url":"https://x/saveVgmWb","method":"POST","body":{"cntnrNo":"ABCD1234567"}}`),
		[]byte(`{"statusCode":200,"data":{"cntnrStatus":"Verified"},"timeTaken":42}`),
		"success",
		"",
		2,
		&original,
		int64(3),
		now,
		now,
	}}

	rec, err := scanLog(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ModuleName != apilog.ModuleVGMSubmission {
		t.Errorf("unexpected module: %q", rec.ModuleName)
	}
	if rec.Request.Body["cntnrNo"] != "ABCD1234567" {
		t.Errorf("unexpected request body: %v", rec.Request.Body)
	}
	if rec.Response == nil || rec.Response.Data["cntnrStatus"] != "Verified" {
		t.Error("expected decoded response payload")
	}
	if rec.Response.TimeTakenMs != 42 {
		t.Errorf("expected timeTaken 42, got %d", rec.Response.TimeTakenMs)
	}
	if rec.OriginalLogID != original {
		t.Errorf("expected original log id mapped, got %q", rec.OriginalLogID)
	}
	if rec.RetryCount != 2 || rec.Version != 3 {
		t.Errorf("unexpected counters: retry=%d version=%d", rec.RetryCount, rec.Version)
	}
}

func TestScanLog_NoResponse(t *testing.T) {
	now := time.Now().UTC()
	row := &fakeRow{values: []any{
		"a1b2c3d4-0000-4000-8000-000000000001",
		"VGM_SUBMISSION",
		[]byte(`{"url":"https://x/saveVgmWb","method":"POST"}`),
		[]byte(nil),
		"pending",
		"",
		0,
		(*string)(nil),
		int64(1),
		now,
		now,
	}}

	rec, err := scanLog(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Response != nil {
		t.Error("expected nil response for a pending record")
	}
	if rec.OriginalLogID != "" {
		t.Errorf("expected empty original log id, got %q", rec.OriginalLogID)
	}
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"seabridge/ms_odex_gateway/internal/core/apilog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const logColumns = `id, module_name, request, response, status, remarks, retry_count, original_log_id, version, created_at, updated_at`

// Repository implements the apilog.Repository interface using PostgreSQL.
// Every create/update is a single statement, so concurrent readers never
// observe a partial write.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL api log repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Create persists a new record in pending state.
func (r *Repository) Create(ctx context.Context, n apilog.NewLog) (*apilog.ApiLog, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if n.Request.Timestamp.IsZero() {
		n.Request.Timestamp = now
	}

	if n.OriginalLogID != "" {
		exists, err := r.exists(ctx, n.OriginalLogID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("original log %s: %w", n.OriginalLogID, apilog.ErrNotFound)
		}
	}

	rec := &apilog.ApiLog{
		ID:            uuid.NewString(),
		ModuleName:    n.ModuleName,
		Request:       n.Request,
		Status:        apilog.StatusPending,
		Remarks:       n.Remarks,
		OriginalLogID: n.OriginalLogID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	requestJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	query := `
		INSERT INTO api_logs (id, module_name, request, status, remarks, retry_count, original_log_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		string(rec.ModuleName),
		requestJSON,
		string(rec.Status),
		rec.Remarks,
		rec.RetryCount,
		nullableID(rec.OriginalLogID),
		rec.Version,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert api log: %w", err)
	}

	if r.log != nil {
		r.log.Debug("api log created",
			"log_id", rec.ID,
			"module", rec.ModuleName,
			"original_log_id", rec.OriginalLogID,
		)
	}
	return rec, nil
}

// GetByID returns one record or apilog.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id string) (*apilog.ApiLog, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apilog.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM api_logs WHERE id = $1`, logColumns)
	rec, err := scanLog(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apilog.ErrNotFound
		}
		return nil, fmt.Errorf("query api log: %w", err)
	}
	return rec, nil
}

// UpdateByID applies the partial update in one statement. When an expected
// version is supplied the update is a compare-and-swap.
func (r *Repository) UpdateByID(ctx context.Context, id string, upd apilog.Update) (*apilog.ApiLog, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apilog.ErrNotFound
	}

	set := []string{"updated_at = NOW()", "version = version + 1"}
	args := []any{id}

	appendArg := func(clause string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf(clause, len(args)))
	}

	if upd.Request != nil {
		requestJSON, err := json.Marshal(upd.Request)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		appendArg("request = $%d", requestJSON)
	}
	if upd.Response != nil {
		responseJSON, err := json.Marshal(upd.Response)
		if err != nil {
			return nil, fmt.Errorf("marshal response: %w", err)
		}
		appendArg("response = $%d", responseJSON)
	}
	if upd.Status != nil {
		appendArg("status = $%d", string(*upd.Status))
		if *upd.Status == apilog.StatusPending {
			// A record re-entering pending is awaiting a fresh outcome.
			set = append(set, "response = NULL")
		}
	}
	if upd.Remarks != nil {
		appendArg("remarks = $%d", *upd.Remarks)
	}
	if upd.IncrementRetry {
		set = append(set, "retry_count = retry_count + 1")
	}

	query := fmt.Sprintf(`UPDATE api_logs SET %s WHERE id = $1`, strings.Join(set, ", "))
	if upd.ExpectedVersion != nil {
		args = append(args, *upd.ExpectedVersion)
		query += fmt.Sprintf(" AND version = $%d", len(args))
	}
	query += fmt.Sprintf(" RETURNING %s", logColumns)

	rec, err := scanLog(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if upd.ExpectedVersion != nil {
				exists, existsErr := r.exists(ctx, id)
				if existsErr == nil && exists {
					return nil, apilog.ErrVersionConflict
				}
			}
			return nil, apilog.ErrNotFound
		}
		return nil, fmt.Errorf("update api log: %w", err)
	}
	return rec, nil
}

// List returns matching records ordered newest first plus the total count.
func (r *Repository) List(ctx context.Context, f apilog.ListFilter, page, pageSize int) ([]apilog.ApiLog, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	where, args := buildFilter(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM api_logs` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count api logs: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM api_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		logColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query api logs: %w", err)
	}
	defer rows.Close()

	var logs []apilog.ApiLog
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan api log: %w", err)
		}
		logs = append(logs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}

	return logs, total, nil
}

// CountByModule returns the number of records for one module.
func (r *Repository) CountByModule(ctx context.Context, m apilog.ModuleName) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM api_logs WHERE module_name = $1`, string(m)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by module: %w", err)
	}
	return count, nil
}

func (r *Repository) exists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM api_logs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check api log existence: %w", err)
	}
	return exists, nil
}

// buildFilter converts the optional predicates into a WHERE clause. Empty
// filter values are skipped, and the predicates are combined with AND.
func buildFilter(f apilog.ListFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ModuleName != "" {
		add("module_name = $%d", string(f.ModuleName))
	}
	if f.Status != "" {
		// The stored status or the carrier-reported container status may
		// satisfy the filter; the UI treats them interchangeably.
		args = append(args, f.Status)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(status ILIKE '%%' || $%d || '%%' OR response -> 'data' ->> 'cntnrStatus' ILIKE '%%' || $%d || '%%')", n, n))
	}
	if f.ContainerNo != "" {
		add("request -> 'body' ->> 'cntnrNo' ILIKE '%%' || $%d || '%%'", f.ContainerNo)
	}
	if f.BookingNo != "" {
		add("request -> 'body' ->> 'bookNo' ILIKE '%%' || $%d || '%%'", f.BookingNo)
	}
	if f.DateFrom != nil {
		add("created_at >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("created_at <= $%d", *f.DateTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (*apilog.ApiLog, error) {
	var rec apilog.ApiLog
	var requestJSON []byte
	var responseJSON []byte
	var originalLogID *string

	err := row.Scan(
		&rec.ID,
		&rec.ModuleName,
		&requestJSON,
		&responseJSON,
		&rec.Status,
		&rec.Remarks,
		&rec.RetryCount,
		&originalLogID,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(requestJSON, &rec.Request); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	if len(responseJSON) > 0 {
		var resp apilog.ResponseInfo
		if err := json.Unmarshal(responseJSON, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		rec.Response = &resp
	}
	if originalLogID != nil {
		rec.OriginalLogID = *originalLogID
	}

	return &rec, nil
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

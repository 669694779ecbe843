package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/omopql/omopql/internal/history"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

const recordColumns = `id, tenant_id, question, sql_text, explanation, provider, model, source, status, error_text, row_count, duration_ms, starred, archived, created_at`

func (r *Repository) Save(ctx context.Context, in history.SaveInput) (history.Record, error) {
	status := in.Status
	if status == "" {
		status = history.StatusOK
	}

	query := `
INSERT INTO query_history (id, tenant_id, question, sql_text, explanation, provider, model, source, status, error_text, row_count, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING created_at`

	record := history.Record{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		Question:    in.Question,
		SQL:         in.SQL,
		Explanation: in.Explanation,
		Provider:    in.Provider,
		Model:       in.Model,
		Source:      in.Source,
		Status:      status,
		ErrorText:   in.ErrorText,
		RowCount:    in.RowCount,
		DurationMS:  in.DurationMS,
	}
	if err := r.db.QueryRowContext(ctx, query,
		record.ID,
		record.TenantID,
		record.Question,
		record.SQL,
		record.Explanation,
		record.Provider,
		record.Model,
		record.Source,
		record.Status,
		record.ErrorText,
		record.RowCount,
		record.DurationMS,
	).Scan(&record.CreatedAt); err != nil {
		return history.Record{}, fmt.Errorf("save history record: %w", err)
	}
	return record, nil
}

func (r *Repository) Get(ctx context.Context, tenantID, id string) (history.Record, error) {
	query := `
SELECT ` + recordColumns + `
FROM query_history
WHERE tenant_id = $1 AND id = $2`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Record{}, history.ErrNotFound
		}
		return history.Record{}, fmt.Errorf("get history record: %w", err)
	}
	return record, nil
}

func (r *Repository) List(ctx context.Context, filter history.ListFilter) ([]history.Record, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	conditions := []string{"tenant_id = $1"}
	if filter.StarredOnly {
		conditions = append(conditions, "starred = TRUE")
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "archived = FALSE")
	}

	query := `
SELECT ` + recordColumns + `
FROM query_history
WHERE ` + strings.Join(conditions, " AND ") + `
ORDER BY created_at DESC
LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, filter.TenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]history.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return records, nil
}

func (r *Repository) Delete(ctx context.Context, tenantID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM query_history WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("delete history record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete history record rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) SetStarred(ctx context.Context, tenantID, id string, starred bool) error {
	return r.setFlag(ctx, "starred", tenantID, id, starred)
}

func (r *Repository) SetArchived(ctx context.Context, tenantID, id string, archived bool) error {
	return r.setFlag(ctx, "archived", tenantID, id, archived)
}

func (r *Repository) setFlag(ctx context.Context, column, tenantID, id string, value bool) error {
	query := fmt.Sprintf(`UPDATE query_history SET %s = $1 WHERE tenant_id = $2 AND id = $3`, column)
	result, err := r.db.ExecContext(ctx, query, value, tenantID, id)
	if err != nil {
		return fmt.Errorf("update history %s: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update history %s rows affected: %w", column, err)
	}
	if affected == 0 {
		return history.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (history.Record, error) {
	var record history.Record
	err := row.Scan(
		&record.ID,
		&record.TenantID,
		&record.Question,
		&record.SQL,
		&record.Explanation,
		&record.Provider,
		&record.Model,
		&record.Source,
		&record.Status,
		&record.ErrorText,
		&record.RowCount,
		&record.DurationMS,
		&record.Starred,
		&record.Archived,
		&record.CreatedAt,
	)
	return record, err
}

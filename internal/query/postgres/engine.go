// Package postgres executes read-only statements against a live OMOP CDM
// warehouse over database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/omopql/omopql/internal/query"
)

type Engine struct {
	db     *sql.DB
	schema string
}

// NewEngine wraps an already opened pool. The schema, when set, is applied
// as a transaction-local search_path so unqualified OMOP table names
// resolve without the caller spelling the prefix.
func NewEngine(db *sql.DB, schema string) *Engine {
	return &Engine{db: db, schema: strings.TrimSpace(schema)}
}

// Open dials the warehouse and applies the pool limits.
func Open(dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	return db, nil
}

func (e *Engine) Name() string { return "postgres" }

func (e *Engine) Ping(ctx context.Context) error {
	if e.db == nil {
		return fmt.Errorf("warehouse is not configured")
	}
	return e.db.PingContext(ctx)
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if err := query.EnsureReadOnly(request.SQL); err != nil {
		return query.Result{}, err
	}
	sqlText := query.ApplyRowLimit(request.SQL, request.RowLimit)

	start := time.Now()
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if e.schema != "" {
		setPath := fmt.Sprintf("SET LOCAL search_path TO %s", quoteIdent(e.schema))
		if _, err := tx.ExecContext(ctx, setPath); err != nil {
			return query.Result{}, fmt.Errorf("set search_path: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, query.NormalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

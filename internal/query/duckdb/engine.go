// Package duckdb runs queries against the bundled demo dataset. The seeder
// uploads one parquet file per OMOP table to the object store; this engine
// pulls them down, exposes each as a view, and executes the statement in an
// in-memory DuckDB instance.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/omopql/omopql/internal/omop"
	"github.com/omopql/omopql/internal/query"
	"github.com/omopql/omopql/internal/storage"
)

type Engine struct {
	Store  storage.ObjectStore
	Prefix string
}

func NewEngine(store storage.ObjectStore, prefix string) *Engine {
	return &Engine{Store: store, Prefix: prefix}
}

func (e *Engine) Name() string { return "duckdb-demo" }

// Ping verifies the demo dataset is reachable by statting the person table,
// which every seeded dataset contains.
func (e *Engine) Ping(ctx context.Context) error {
	if e.Store == nil {
		return fmt.Errorf("object store is required")
	}
	key, err := storage.BuildDemoTablePath(e.Prefix, "person")
	if err != nil {
		return err
	}
	if _, err := e.Store.Stat(ctx, key); err != nil {
		return fmt.Errorf("demo dataset not seeded: %w", err)
	}
	return nil
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if err := query.EnsureReadOnly(request.SQL); err != nil {
		return query.Result{}, err
	}
	if e.Store == nil {
		return query.Result{}, fmt.Errorf("object store is required")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "omopql-demo-")
	if err != nil {
		return query.Result{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPaths := map[string]string{}
	for _, tableName := range omop.TableNames() {
		key, err := storage.BuildDemoTablePath(e.Prefix, tableName)
		if err != nil {
			return query.Result{}, err
		}
		reader, err := e.Store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			return query.Result{}, fmt.Errorf("get object %q: %w", key, err)
		}

		localPath := filepath.Join(workDir, tableName+".parquet")
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return query.Result{}, fmt.Errorf("write local parquet file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return query.Result{}, fmt.Errorf("close object %q: %w", key, err)
		}
		localPaths[tableName] = localPath
	}
	if len(localPaths) == 0 {
		return query.Result{}, fmt.Errorf("demo dataset is empty, run the seeder first")
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	for tableName, localPath := range localPaths {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteString(localPath))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return query.Result{}, fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}

	sqlText := query.ApplyRowLimit(request.SQL, request.RowLimit)
	rows, err := db.QueryContext(ctx, sqlText)
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

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

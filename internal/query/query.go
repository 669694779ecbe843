// Package query defines the execution contract shared by the warehouse
// engines. An Engine runs a single read-only statement and hands back the
// column names plus fully materialized rows.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns  []string
	Rows     [][]any
	RowCount int
	Duration time.Duration
}

type Engine interface {
	Name() string
	Execute(ctx context.Context, request Request) (Result, error)
	Ping(ctx context.Context) error
}

// EnsureReadOnly rejects anything that is not a SELECT or WITH statement.
// The check is a prefix gate, not a parser; the engines additionally run
// inside read-only transactions where the driver supports them.
func EnsureReadOnly(sqlText string) error {
	trimmed := strings.ToLower(StripTrailingSemicolons(sqlText))
	if trimmed == "" {
		return fmt.Errorf("sql is required")
	}
	if !strings.HasPrefix(trimmed, "select") && !strings.HasPrefix(trimmed, "with") {
		return fmt.Errorf("only SELECT and WITH statements are allowed")
	}
	return nil
}

// ApplyRowLimit wraps the statement in a bounding subquery. A limit of zero
// or less leaves the statement untouched.
func ApplyRowLimit(sqlText string, rowLimit int) string {
	sqlText = StripTrailingSemicolons(sqlText)
	if rowLimit <= 0 {
		return sqlText
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, rowLimit)
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// NormalizeValues rewrites driver byte slices as strings so the rows encode
// as JSON text instead of base64.
func NormalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.Format(time.RFC3339)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

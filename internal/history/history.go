// Package history records every answered question so users can revisit,
// star, and re-run past queries.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history: not found")

const (
	SourceDatabase = "database"
	SourceMock     = "mock"

	StatusOK    = "ok"
	StatusError = "error"
)

type Record struct {
	ID          string
	TenantID    string
	Question    string
	SQL         string
	Explanation string
	Provider    string
	Model       string
	Source      string
	Status      string
	ErrorText   string
	RowCount    int
	DurationMS  int64
	Starred     bool
	Archived    bool
	CreatedAt   time.Time
}

type SaveInput struct {
	TenantID    string
	Question    string
	SQL         string
	Explanation string
	Provider    string
	Model       string
	Source      string
	Status      string
	ErrorText   string
	RowCount    int
	DurationMS  int64
}

// ListFilter narrows a history listing. Archived records are hidden unless
// IncludeArchived is set; StarredOnly keeps only starred records.
type ListFilter struct {
	TenantID        string
	StarredOnly     bool
	IncludeArchived bool
	Limit           int
}

type Repository interface {
	HealthCheck(ctx context.Context) error
	Save(ctx context.Context, in SaveInput) (Record, error)
	Get(ctx context.Context, tenantID, id string) (Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
	Delete(ctx context.Context, tenantID, id string) (bool, error)
	SetStarred(ctx context.Context, tenantID, id string, starred bool) error
	SetArchived(ctx context.Context, tenantID, id string, archived bool) error
}

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/omopql/omopql/internal/omop"
	"github.com/omopql/omopql/internal/query"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r, "query_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	tables := omop.Tables()
	items := make([]map[string]any, 0, len(tables))
	for _, table := range tables {
		columns := make([]map[string]any, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, map[string]any{
				"name":        column.Name,
				"type":        column.Type,
				"description": column.Description,
			})
		}
		item := map[string]any{
			"name":        table.Name,
			"description": table.Description,
			"columns":     columns,
		}
		if sample, ok := sampleRowsForTable(r.Context(), deps, table.Name); ok {
			item["sample_rows"] = sample
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{"tables": items})
}

// sampleRowsForTable is best effort: sampling failures leave the schema
// response without rows rather than failing it.
func sampleRowsForTable(ctx context.Context, deps Dependencies, tableName string) ([][]any, bool) {
	if deps.Engine == nil || deps.SchemaSampleRows <= 0 {
		return nil, false
	}
	result, err := deps.Engine.Execute(ctx, query.Request{
		SQL:      "SELECT * FROM " + tableName + " LIMIT " + strconv.Itoa(deps.SchemaSampleRows),
		RowLimit: deps.SchemaSampleRows,
	})
	if err != nil {
		return nil, false
	}
	return result.Rows, true
}

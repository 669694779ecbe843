package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omopql/omopql/internal/export"
	"github.com/omopql/omopql/internal/observability"
	"github.com/omopql/omopql/internal/query"
)

type queryRequestBody struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

type exportRequestBody struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
	Archive  bool   `json:"archive"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r, "query_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req queryRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if err := query.EnsureReadOnly(req.SQL); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", err.Error(), false, nil)
		return
	}

	result, source, execErr := executeWithFallback(r.Context(), deps, req.SQL, clampRowLimit(deps, req.RowLimit))
	if source == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": execErr.Error()})
		return
	}

	response := map[string]any{
		"columns":   result.Columns,
		"rows":      result.Rows,
		"row_count": result.RowCount,
		"source":    source,
		"stats":     map[string]any{"duration_ms": result.Duration.Milliseconds()},
	}
	if execErr != nil {
		response["execution_error"] = execErr.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func handleExportCSV(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r, "query_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req exportRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if err := query.EnsureReadOnly(req.SQL); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", err.Error(), false, nil)
		return
	}
	if req.Archive && deps.ObjectStore == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}

	result, source, execErr := executeWithFallback(r.Context(), deps, req.SQL, clampRowLimit(deps, req.RowLimit))
	if source == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": execErr.Error()})
		return
	}

	if req.Archive {
		exportID, _, err := export.Archive(r.Context(), deps.ObjectStore, result, time.Now().UTC())
		if err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_FAILED", "failed to archive export", true, map[string]any{"details": err.Error()})
			return
		}
		w.Header().Set("X-Export-ID", exportID)
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
	w.Header().Set("X-Result-Source", source)
	w.WriteHeader(http.StatusOK)

	n, err := export.WriteCSV(w, result)
	observability.ObserveExportBytes(int(n))
	if err != nil && deps.Logger != nil {
		deps.Logger.Error("failed to stream csv export", slog.Any("error", err))
	}
}

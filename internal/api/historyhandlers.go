package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omopql/omopql/internal/export"
	"github.com/omopql/omopql/internal/history"
	"github.com/omopql/omopql/internal/observability"
)

type starRequestBody struct {
	Starred *bool `json:"starred"`
}

func handleListHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history store is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, "query_reader", "history_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	filter := history.ListFilter{TenantID: tenantFromRequest(r)}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("starred")); raw != "" {
		starred, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FILTER", "starred must be a boolean", false, nil)
			return
		}
		filter.StarredOnly = starred
	}
	if raw := strings.TrimSpace(q.Get("include_archived")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FILTER", "include_archived must be a boolean", false, nil)
			return
		}
		filter.IncludeArchived = include
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FILTER", "limit must be a positive integer", false, nil)
			return
		}
		filter.Limit = limit
	}

	records, err := deps.History.List(r.Context(), filter)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to list history", true, map[string]any{"details": err.Error()})
		return
	}

	items := make([]map[string]any, 0, len(records))
	for _, record := range records {
		items = append(items, historyItem(record))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func handleGetHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history store is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, "query_reader", "history_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "ID_REQUIRED", "history id is required", false, nil)
		return
	}

	record, err := deps.History.Get(r.Context(), tenantFromRequest(r), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "HISTORY_NOT_FOUND", "history record was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load history record", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, historyItem(record))
}

func handleDeleteHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history store is not configured", false, nil)
		return
	}
	if err := requireRole(r, "history_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "ID_REQUIRED", "history id is required", false, nil)
		return
	}

	deleted, err := deps.History.Delete(r.Context(), tenantFromRequest(r), id)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to delete history record", true, map[string]any{"details": err.Error()})
		return
	}
	if !deleted {
		writeError(r.Context(), w, http.StatusNotFound, "HISTORY_NOT_FOUND", "history record was not found", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// handleStarHistory toggles the starred flag. An empty body means true; a
// body of {"starred": false} clears it.
func handleStarHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history store is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, "query_reader", "history_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "ID_REQUIRED", "history id is required", false, nil)
		return
	}

	starred := true
	var req starRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid star body", false, map[string]any{"details": err.Error()})
		return
	}
	if req.Starred != nil {
		starred = *req.Starred
	}

	if err := deps.History.SetStarred(r.Context(), tenantFromRequest(r), id, starred); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "HISTORY_NOT_FOUND", "history record was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to update history record", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "id": id, "starred": starred})
}

// handleArchiveHistory re-runs the stored SQL, writes the result as a CSV
// object in the export area, and marks the record archived.
func handleArchiveHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history store is not configured", false, nil)
		return
	}
	if deps.ObjectStore == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}
	if err := requireRole(r, "history_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "ID_REQUIRED", "history id is required", false, nil)
		return
	}

	tenantID := tenantFromRequest(r)
	record, err := deps.History.Get(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "HISTORY_NOT_FOUND", "history record was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load history record", true, map[string]any{"details": err.Error()})
		return
	}

	result, source, execErr := executeWithFallback(r.Context(), deps, record.SQL, clampRowLimit(deps, 0))
	if source == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": execErr.Error()})
		return
	}

	exportID, info, err := export.Archive(r.Context(), deps.ObjectStore, result, time.Now().UTC())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_FAILED", "failed to archive export", true, map[string]any{"details": err.Error()})
		return
	}
	observability.ObserveExportBytes(int(info.Size))

	if err := deps.History.SetArchived(r.Context(), tenantID, id, true); err != nil && !errors.Is(err, history.ErrNotFound) {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to update history record", true, map[string]any{"details": err.Error()})
		return
	}

	response := map[string]any{
		"status":    "archived",
		"id":        id,
		"export_id": exportID,
		"key":       info.Key,
		"source":    source,
		"row_count": result.RowCount,
	}
	if execErr != nil {
		response["execution_error"] = execErr.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func historyItem(record history.Record) map[string]any {
	return map[string]any{
		"id":          record.ID,
		"question":    record.Question,
		"sql":         record.SQL,
		"explanation": record.Explanation,
		"provider":    record.Provider,
		"model":       record.Model,
		"source":      record.Source,
		"status":      record.Status,
		"error_text":  record.ErrorText,
		"row_count":   record.RowCount,
		"duration_ms": record.DurationMS,
		"starred":     record.Starred,
		"archived":    record.Archived,
		"created_at":  record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

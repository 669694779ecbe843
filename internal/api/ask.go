package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omopql/omopql/internal/history"
	"github.com/omopql/omopql/internal/nl2sql"
	"github.com/omopql/omopql/internal/observability"
	"github.com/omopql/omopql/internal/omop"
	"github.com/omopql/omopql/internal/query"
)

type translateRequestBody struct {
	Question string `json:"question"`
	RowLimit int    `json:"row_limit"`
}

type askRequestBody struct {
	Question string `json:"question"`
	RowLimit int    `json:"row_limit"`
	Execute  *bool  `json:"execute"`
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "no language model provider is configured", false, nil)
		return
	}
	if err := requireRole(r, "query_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req translateRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	result, ok := translate(r.Context(), deps, w, req.Question, clampRowLimit(deps, req.RowLimit))
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sql":         result.SQL,
		"explanation": result.Explanation,
		"provider":    result.Provider,
		"model":       result.Model,
	})
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "no language model provider is configured", false, nil)
		return
	}
	if err := requireRole(r, "query_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req askRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	rowLimit := clampRowLimit(deps, req.RowLimit)
	translated, ok := translate(r.Context(), deps, w, req.Question, rowLimit)
	if !ok {
		return
	}

	response := map[string]any{
		"question":    req.Question,
		"sql":         translated.SQL,
		"explanation": translated.Explanation,
		"provider":    translated.Provider,
		"model":       translated.Model,
		"executed":    false,
	}

	execute := req.Execute == nil || *req.Execute
	var saved history.Record
	if execute {
		result, source, execErr := executeWithFallback(r.Context(), deps, translated.SQL, rowLimit)
		if source == "" {
			writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": execErr.Error()})
			return
		}
		response["executed"] = true
		response["source"] = source
		response["columns"] = result.Columns
		response["rows"] = result.Rows
		response["row_count"] = result.RowCount
		response["stats"] = map[string]any{"duration_ms": result.Duration.Milliseconds()}
		if execErr != nil {
			response["execution_error"] = execErr.Error()
		}

		status := history.StatusOK
		errorText := ""
		if execErr != nil {
			status = history.StatusError
			errorText = execErr.Error()
		}
		saved = saveHistory(r.Context(), deps, history.SaveInput{
			TenantID:    tenantFromRequest(r),
			Question:    req.Question,
			SQL:         translated.SQL,
			Explanation: translated.Explanation,
			Provider:    translated.Provider,
			Model:       translated.Model,
			Source:      source,
			Status:      status,
			ErrorText:   errorText,
			RowCount:    result.RowCount,
			DurationMS:  result.Duration.Milliseconds(),
		})
	}
	if saved.ID != "" {
		response["history_id"] = saved.ID
	}

	writeJSON(w, http.StatusOK, response)
}

// translate runs the provider round trip and writes the error response
// itself on failure. Provider failures surface as retryable 502s with the
// upstream status attached.
func translate(ctx context.Context, deps Dependencies, w http.ResponseWriter, question string, rowLimit int) (nl2sql.Result, bool) {
	start := time.Now()
	result, err := deps.Translator.Translate(ctx, nl2sql.Request{
		Question:      question,
		SchemaContext: omop.DescribeForPrompt(),
		RowLimit:      rowLimit,
	})
	observability.ObserveTranslate(deps.Translator.Name(), time.Since(start), err)
	if err != nil {
		extra := map[string]any{"details": err.Error()}
		var providerErr *nl2sql.ProviderError
		if errors.As(err, &providerErr) {
			extra["provider_status"] = providerErr.StatusCode
		}
		writeError(ctx, w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate question", true, extra)
		return nl2sql.Result{}, false
	}
	return result, true
}

// executeWithFallback runs the SQL on the engine when one is configured and
// falls back to mock rows when the engine is missing or fails. The returned
// source is empty only when no path could produce rows; the returned error
// carries the engine failure that triggered a fallback.
func executeWithFallback(ctx context.Context, deps Dependencies, sqlText string, rowLimit int) (query.Result, string, error) {
	if deps.Engine != nil {
		result, err := deps.Engine.Execute(ctx, query.Request{SQL: sqlText, RowLimit: rowLimit})
		if err == nil {
			observability.ObserveQueryExecution(history.SourceDatabase, result.RowCount)
			return result, history.SourceDatabase, nil
		}
		if deps.Mock == nil {
			return query.Result{}, "", err
		}
		result = deps.Mock.Generate(sqlText, rowLimit)
		observability.ObserveQueryExecution(history.SourceMock, result.RowCount)
		return result, history.SourceMock, err
	}
	if deps.Mock == nil {
		return query.Result{}, "", errors.New("no query engine or mock generator is configured")
	}
	result := deps.Mock.Generate(sqlText, rowLimit)
	observability.ObserveQueryExecution(history.SourceMock, result.RowCount)
	return result, history.SourceMock, nil
}

// saveHistory is best effort: a failed save is logged and counted, never
// surfaced to the caller.
func saveHistory(ctx context.Context, deps Dependencies, in history.SaveInput) history.Record {
	if deps.History == nil {
		return history.Record{}
	}
	record, err := deps.History.Save(ctx, in)
	observability.ObserveHistorySave(err)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Error("failed to save history record", slog.Any("error", err))
		}
		return history.Record{}
	}
	return record
}

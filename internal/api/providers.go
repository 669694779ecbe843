package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/omopql/omopql/internal/config"
	"github.com/omopql/omopql/internal/nl2sql"
	"github.com/omopql/omopql/internal/omop"
)

type providerStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Active     bool   `json:"active"`
	Model      string `json:"model,omitempty"`
}

func handleListProviders(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := requireAnyRole(r, "query_reader", "history_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	active := strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	providers := []providerStatus{
		{
			Name:       "openai",
			Configured: cfg.AI.OpenAI.APIKey != "",
			Model:      cfg.AI.OpenAI.Model,
		},
		{
			Name:       "azure",
			Configured: cfg.AI.Azure.APIKey != "" && cfg.AI.Azure.Endpoint != "" && cfg.AI.Azure.Deployment != "",
			Model:      cfg.AI.Azure.Deployment,
		},
		{
			Name:       "anthropic",
			Configured: cfg.AI.Anthropic.APIKey != "",
			Model:      cfg.AI.Anthropic.Model,
		},
		{
			Name:       "google",
			Configured: cfg.AI.Google.APIKey != "",
			Model:      cfg.AI.Google.Model,
		},
		{
			Name:       "deepseek",
			Configured: cfg.AI.Deepseek.APIKey != "",
			Model:      cfg.AI.Deepseek.Model,
		},
		{
			Name:       "databricks",
			Configured: cfg.AI.Databricks.Token != "" && cfg.AI.Databricks.Host != "" && cfg.AI.Databricks.Endpoint != "",
			Model:      cfg.AI.Databricks.Endpoint,
		},
	}
	for i := range providers {
		providers[i].Active = providers[i].Name == active
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":    active,
		"providers": providers,
	})
}

type providerCheckBody struct {
	Provider string `json:"provider"`
}

// handleProviderCheck sends a fixed probe question through a translator and
// reports whether a usable completion came back. The body may name a provider
// to probe; otherwise the active translator is used.
func handleProviderCheck(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := requireAnyRole(r, "query_reader", "history_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req providerCheckBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid provider check body", false, map[string]any{"details": err.Error()})
		return
	}

	translator := deps.Translator
	if name := strings.ToLower(strings.TrimSpace(req.Provider)); name != "" {
		aiCfg := cfg.AI
		aiCfg.Provider = name
		built, err := nl2sql.New(aiCfg)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "PROVIDER_NOT_CONFIGURED", err.Error(), false, nil)
			return
		}
		translator = built
	}
	if translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "no language-model provider is configured", false, nil)
		return
	}

	start := time.Now()
	result, err := translator.Translate(r.Context(), nl2sql.ProbeRequest(omop.DescribeForPrompt()))
	elapsed := time.Since(start)
	if err != nil {
		extra := map[string]any{
			"provider":   translator.Name(),
			"details":    err.Error(),
			"elapsed_ms": elapsed.Milliseconds(),
		}
		var provErr *nl2sql.ProviderError
		if errors.As(err, &provErr) {
			extra["provider_status"] = provErr.StatusCode
		}
		writeError(r.Context(), w, http.StatusBadGateway, "PROVIDER_CHECK_FAILED", "provider check failed", true, extra)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"provider":   result.Provider,
		"model":      result.Model,
		"elapsed_ms": elapsed.Milliseconds(),
		"sql":        result.SQL,
	})
}

// Package nl2sql turns natural-language questions about an OMOP CDM database
// into SQL plus a prose explanation, by way of a configurable language-model
// provider. Every provider speaks its own HTTP dialect; all of them share the
// prompt builder and the completion parser.
package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/omopql/omopql/internal/config"
)

type Request struct {
	Question      string `json:"question"`
	SchemaContext string `json:"schema_context"`
	RowLimit      int    `json:"row_limit"`
}

type Result struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

type Translator interface {
	Name() string
	Translate(ctx context.Context, req Request) (Result, error)
}

// New builds the translator selected by cfg.Provider. An empty provider name
// returns (nil, nil): translation is simply not configured.
func New(cfg config.AIConfig) (Translator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAITranslator(cfg)
	case "azure":
		return NewAzureTranslator(cfg)
	case "anthropic":
		return NewAnthropicTranslator(cfg)
	case "google":
		return NewGoogleTranslator(cfg)
	case "deepseek":
		return NewDeepseekTranslator(cfg)
	case "databricks":
		return NewDatabricksTranslator(cfg)
	default:
		return nil, fmt.Errorf("unknown translator provider %q", cfg.Provider)
	}
}

// ProbeRequest is the fixed question used by connection checks. The caller
// supplies the schema context.
func ProbeRequest(schemaContext string) Request {
	return Request{
		Question:      "How many patients are in the database?",
		SchemaContext: schemaContext,
		RowLimit:      1,
	}
}

package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/omopql/omopql/internal/config"
)

// DatabricksTranslator invokes a model serving endpoint. Foundation-model
// endpoints accept and return the chat-completions shape; the endpoint name
// doubles as the model identifier.
type DatabricksTranslator struct {
	host        string
	token       string
	endpoint    string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewDatabricksTranslator(cfg config.AIConfig) (*DatabricksTranslator, error) {
	if strings.TrimSpace(cfg.Databricks.Host) == "" {
		return nil, fmt.Errorf("databricks host is required")
	}
	if strings.TrimSpace(cfg.Databricks.Token) == "" {
		return nil, fmt.Errorf("databricks token is required")
	}
	if strings.TrimSpace(cfg.Databricks.Endpoint) == "" {
		return nil, fmt.Errorf("databricks serving endpoint is required")
	}
	return &DatabricksTranslator{
		host:        strings.TrimRight(strings.TrimSpace(cfg.Databricks.Host), "/"),
		token:       strings.TrimSpace(cfg.Databricks.Token),
		endpoint:    strings.TrimSpace(cfg.Databricks.Endpoint),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      newHTTPClient(cfg.Timeout),
	}, nil
}

func (t *DatabricksTranslator) Name() string { return "databricks" }

func (t *DatabricksTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	payload := chatPayload{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	}
	url := fmt.Sprintf("%s/serving-endpoints/%s/invocations", t.host, t.endpoint)
	body, err := postJSON(ctx, t.client, t.Name(), url, map[string]string{
		"Authorization": "Bearer " + t.token,
	}, payload)
	if err != nil {
		return Result{}, err
	}
	content, err := decodeChatCompletion(t.Name(), body)
	if err != nil {
		return Result{}, err
	}
	sql, explanation, err := ParseCompletion(content)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: sql, Explanation: explanation, Provider: t.Name(), Model: t.endpoint}, nil
}

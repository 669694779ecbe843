package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/omopql/omopql/internal/config"
)

// AzureTranslator targets an Azure OpenAI deployment. Azure routes by
// deployment name rather than model and authenticates with an api-key header.
type AzureTranslator struct {
	endpoint    string
	deployment  string
	apiKey      string
	apiVersion  string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewAzureTranslator(cfg config.AIConfig) (*AzureTranslator, error) {
	if strings.TrimSpace(cfg.Azure.Endpoint) == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if strings.TrimSpace(cfg.Azure.Deployment) == "" {
		return nil, fmt.Errorf("azure deployment is required")
	}
	if strings.TrimSpace(cfg.Azure.APIKey) == "" {
		return nil, fmt.Errorf("azure api key is required")
	}
	apiVersion := strings.TrimSpace(cfg.Azure.APIVersion)
	if apiVersion == "" {
		apiVersion = "2024-02-15-preview"
	}
	return &AzureTranslator{
		endpoint:    strings.TrimRight(strings.TrimSpace(cfg.Azure.Endpoint), "/"),
		deployment:  strings.TrimSpace(cfg.Azure.Deployment),
		apiKey:      strings.TrimSpace(cfg.Azure.APIKey),
		apiVersion:  apiVersion,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      newHTTPClient(cfg.Timeout),
	}, nil
}

func (t *AzureTranslator) Name() string { return "azure" }

func (t *AzureTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	payload := chatPayload{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	}
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", t.endpoint, t.deployment, t.apiVersion)
	body, err := postJSON(ctx, t.client, t.Name(), url, map[string]string{
		"api-key": t.apiKey,
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
	return Result{SQL: sql, Explanation: explanation, Provider: t.Name(), Model: t.deployment}, nil
}

package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/omopql/omopql/internal/config"
)

// DeepseekTranslator uses Deepseek's OpenAI-compatible chat endpoint. The
// wire format matches OpenAI except for the path, which omits /v1.
type DeepseekTranslator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewDeepseekTranslator(cfg config.AIConfig) (*DeepseekTranslator, error) {
	if strings.TrimSpace(cfg.Deepseek.APIKey) == "" {
		return nil, fmt.Errorf("deepseek api key is required")
	}
	baseURL := strings.TrimSpace(cfg.Deepseek.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	model := strings.TrimSpace(cfg.Deepseek.Model)
	if model == "" {
		model = "deepseek-chat"
	}
	return &DeepseekTranslator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      strings.TrimSpace(cfg.Deepseek.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      newHTTPClient(cfg.Timeout),
	}, nil
}

func (t *DeepseekTranslator) Name() string { return "deepseek" }

func (t *DeepseekTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	payload := chatPayload{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	}
	body, err := postJSON(ctx, t.client, t.Name(), t.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + t.apiKey,
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
	return Result{SQL: sql, Explanation: explanation, Provider: t.Name(), Model: t.model}, nil
}

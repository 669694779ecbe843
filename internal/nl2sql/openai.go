package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/omopql/omopql/internal/config"
)

// OpenAITranslator talks to api.openai.com or any OpenAI-compatible gateway.
type OpenAITranslator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewOpenAITranslator(cfg config.AIConfig) (*OpenAITranslator, error) {
	if strings.TrimSpace(cfg.OpenAI.BaseURL) == "" {
		return nil, fmt.Errorf("openai base URL is required")
	}
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	model := strings.TrimSpace(cfg.OpenAI.Model)
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAITranslator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.OpenAI.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.OpenAI.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      newHTTPClient(cfg.Timeout),
	}, nil
}

func (t *OpenAITranslator) Name() string { return "openai" }

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Result, error) {
	payload := chatPayload{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	}
	body, err := postJSON(ctx, t.client, t.Name(), t.baseURL+"/v1/chat/completions", map[string]string{
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

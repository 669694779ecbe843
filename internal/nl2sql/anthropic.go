package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/omopql/omopql/internal/config"
)

// AnthropicTranslator speaks the Messages API: a top-level system prompt,
// x-api-key auth, and a response made of typed content blocks.
type AnthropicTranslator struct {
	baseURL     string
	apiKey      string
	model       string
	version     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewAnthropicTranslator(cfg config.AIConfig) (*AnthropicTranslator, error) {
	if strings.TrimSpace(cfg.Anthropic.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	baseURL := strings.TrimSpace(cfg.Anthropic.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	model := strings.TrimSpace(cfg.Anthropic.Model)
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	version := strings.TrimSpace(cfg.Anthropic.Version)
	if version == "" {
		version = "2023-06-01"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicTranslator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      strings.TrimSpace(cfg.Anthropic.APIKey),
		model:       model,
		version:     version,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		client:      newHTTPClient(cfg.Timeout),
	}, nil
}

func (t *AnthropicTranslator) Name() string { return "anthropic" }

func (t *AnthropicTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	payload := map[string]any{
		"model":       t.model,
		"max_tokens":  t.maxTokens,
		"temperature": t.temperature,
		"system":      systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": buildUserPrompt(req)},
		},
	}
	body, err := postJSON(ctx, t.client, t.Name(), t.baseURL+"/v1/messages", map[string]string{
		"x-api-key":         t.apiKey,
		"anthropic-version": t.version,
	}, payload)
	if err != nil {
		return Result{}, err
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode anthropic response: %w", err)
	}
	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Result{}, fmt.Errorf("anthropic returned no text content")
	}

	sql, explanation, err := ParseCompletion(text.String())
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: sql, Explanation: explanation, Provider: t.Name(), Model: t.model}, nil
}

package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/omopql/omopql/internal/config"
)

// GoogleTranslator calls the Generative Language generateContent endpoint.
type GoogleTranslator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewGoogleTranslator(cfg config.AIConfig) (*GoogleTranslator, error) {
	if strings.TrimSpace(cfg.Google.APIKey) == "" {
		return nil, fmt.Errorf("google api key is required")
	}
	baseURL := strings.TrimSpace(cfg.Google.BaseURL)
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	model := strings.TrimSpace(cfg.Google.Model)
	if model == "" {
		model = "gemini-1.5-pro-latest"
	}
	return &GoogleTranslator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      strings.TrimSpace(cfg.Google.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      newHTTPClient(cfg.Timeout),
	}, nil
}

func (t *GoogleTranslator) Name() string { return "google" }

func (t *GoogleTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	generationConfig := map[string]any{
		"temperature": t.temperature,
	}
	if t.maxTokens > 0 {
		generationConfig["maxOutputTokens"] = t.maxTokens
	}
	payload := map[string]any{
		"system_instruction": map[string]any{
			"parts": []map[string]string{{"text": systemPrompt}},
		},
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": buildUserPrompt(req)}},
			},
		},
		"generationConfig": generationConfig,
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", t.baseURL, t.model)
	body, err := postJSON(ctx, t.client, t.Name(), url, map[string]string{
		"x-goog-api-key": t.apiKey,
	}, payload)
	if err != nil {
		return Result{}, err
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode google response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return Result{}, fmt.Errorf("google returned no candidates")
	}
	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	sql, explanation, err := ParseCompletion(text.String())
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: sql, Explanation: explanation, Provider: t.Name(), Model: t.model}, nil
}

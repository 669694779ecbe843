package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/omopql/omopql/internal/nl2sql"
)

func TestListProvidersReportsConfiguredAndActive(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"OMOPQL_AI_PROVIDER":       "anthropic",
		"OMOPQL_ANTHROPIC_API_KEY": "sk-test",
		"OMOPQL_OPENAI_API_KEY":    "sk-other",
	})

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/providers", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["active"] != "anthropic" {
		t.Fatalf("active = %v", body["active"])
	}

	providers, _ := body["providers"].([]any)
	if len(providers) != 6 {
		t.Fatalf("provider count = %d", len(providers))
	}
	byName := make(map[string]map[string]any, len(providers))
	for _, raw := range providers {
		entry, _ := raw.(map[string]any)
		name, _ := entry["name"].(string)
		byName[name] = entry
	}

	if byName["anthropic"]["configured"] != true || byName["anthropic"]["active"] != true {
		t.Fatalf("anthropic = %#v", byName["anthropic"])
	}
	if byName["openai"]["configured"] != true || byName["openai"]["active"] != false {
		t.Fatalf("openai = %#v", byName["openai"])
	}
	if byName["google"]["configured"] != false {
		t.Fatalf("google = %#v", byName["google"])
	}
}

func TestProviderCheckWithoutTranslatorReturns501(t *testing.T) {
	cfg := testConfig(t, nil)

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/providers/check", nil))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "TRANSLATE_NOT_CONFIGURED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestProviderCheckReportsSuccess(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{
		SQL:      "SELECT COUNT(*) FROM person",
		Provider: "fake",
		Model:    "probe-model",
	}}

	h := NewHandler(cfg, Dependencies{Translator: translator})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/providers/check", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["status"] != "ok" || body["model"] != "probe-model" {
		t.Fatalf("body = %#v", body)
	}
	if translator.calls != 1 {
		t.Fatalf("translator calls = %d", translator.calls)
	}
}

func TestProviderCheckRejectsUnknownProviderOverride(t *testing.T) {
	cfg := testConfig(t, nil)

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/providers/check", `{"provider":"mainframe"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "PROVIDER_NOT_CONFIGURED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestProviderCheckOverrideRequiresCredentials(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"OMOPQL_AI_PROVIDER":       "anthropic",
		"OMOPQL_ANTHROPIC_API_KEY": "sk-test",
	})
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT 1", Provider: "fake"}}

	h := NewHandler(cfg, Dependencies{Translator: translator})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/providers/check", `{"provider":"openai"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if translator.calls != 0 {
		t.Fatalf("active translator probed despite override, calls = %d", translator.calls)
	}
}

func TestProviderCheckSurfacesUpstreamStatus(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{err: &nl2sql.ProviderError{
		Provider:   "fake",
		StatusCode: http.StatusTooManyRequests,
		Body:       "rate limited",
	}}

	h := NewHandler(cfg, Dependencies{Translator: translator})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/providers/check", nil))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "PROVIDER_CHECK_FAILED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	extra, _ := body["context"].(map[string]any)
	if extra["provider_status"] != float64(http.StatusTooManyRequests) {
		t.Fatalf("provider_status = %v", extra["provider_status"])
	}
}

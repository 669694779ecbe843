package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/omopql/omopql/internal/history"
	"github.com/omopql/omopql/internal/nl2sql"
	"github.com/omopql/omopql/internal/query"
)

func postJSONRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTranslateReturnsSQLAndExplanation(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{
		SQL:         "SELECT COUNT(*) FROM person",
		Explanation: "Counts all patients.",
		Provider:    "openai",
		Model:       "gpt-4o",
	}}

	h := NewHandler(cfg, Dependencies{Translator: translator})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/translate", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["sql"] != "SELECT COUNT(*) FROM person" {
		t.Fatalf("sql = %v", body["sql"])
	}
	if body["provider"] != "openai" || body["model"] != "gpt-4o" {
		t.Fatalf("provider/model = %v/%v", body["provider"], body["model"])
	}
}

func TestTranslateWithoutProviderReturns501(t *testing.T) {
	cfg := testConfig(t, nil)

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/translate", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "TRANSLATE_NOT_CONFIGURED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestTranslateRequiresQuestion(t *testing.T) {
	cfg := testConfig(t, nil)

	h := NewHandler(cfg, Dependencies{Translator: &fakeTranslator{}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/translate", `{"question":"  "}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "QUESTION_REQUIRED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestTranslateSurfacesProviderFailure(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{err: &nl2sql.ProviderError{
		Provider:   "openai",
		StatusCode: http.StatusUnauthorized,
		Body:       "invalid api key",
	}}

	h := NewHandler(cfg, Dependencies{Translator: translator})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/translate", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "TRANSLATE_FAILED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	if body["retryable"] != true {
		t.Fatalf("retryable = %v", body["retryable"])
	}
	extra, _ := body["context"].(map[string]any)
	if extra["provider_status"] != float64(http.StatusUnauthorized) {
		t.Fatalf("provider_status = %v", extra["provider_status"])
	}
}

func TestAskExecutesAgainstEngineAndSavesHistory(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{
		SQL:      "SELECT COUNT(*) FROM person",
		Provider: "anthropic",
		Model:    "claude-3-5-sonnet",
	}}
	engine := &fakeEngine{result: query.Result{
		Columns:  []string{"count"},
		Rows:     [][]any{{int64(421)}},
		RowCount: 1,
		Duration: 12 * time.Millisecond,
	}}
	hist := newFakeHistory()

	h := NewHandler(cfg, Dependencies{Translator: translator, Engine: engine, History: hist})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/ask", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["executed"] != true || body["source"] != "database" {
		t.Fatalf("executed/source = %v/%v", body["executed"], body["source"])
	}
	if body["row_count"] != float64(1) {
		t.Fatalf("row_count = %v", body["row_count"])
	}
	if body["history_id"] == nil {
		t.Fatal("expected history_id in response")
	}
	if len(hist.saved) != 1 {
		t.Fatalf("saved records = %d", len(hist.saved))
	}
	saved := hist.saved[0]
	if saved.Source != history.SourceDatabase || saved.Status != history.StatusOK {
		t.Fatalf("saved source/status = %s/%s", saved.Source, saved.Status)
	}
	if saved.TenantID != "default" {
		t.Fatalf("saved tenant = %s", saved.TenantID)
	}
}

func TestAskFallsBackToMockWhenEngineFails(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT COUNT(*) FROM person"}}
	engine := &fakeEngine{err: errors.New("connection refused")}
	mock := &fakeMock{result: query.Result{
		Columns:  []string{"count"},
		Rows:     [][]any{{int64(1000)}},
		RowCount: 1,
	}}
	hist := newFakeHistory()

	h := NewHandler(cfg, Dependencies{Translator: translator, Engine: engine, Mock: mock, History: hist})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/ask", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["source"] != "mock" {
		t.Fatalf("source = %v", body["source"])
	}
	if body["execution_error"] == nil {
		t.Fatal("expected execution_error when falling back")
	}
	if mock.calls != 1 {
		t.Fatalf("mock calls = %d", mock.calls)
	}
	if len(hist.saved) != 1 || hist.saved[0].Source != history.SourceMock {
		t.Fatalf("saved = %#v", hist.saved)
	}
	if hist.saved[0].ErrorText == "" {
		t.Fatal("expected engine error recorded in history")
	}
}

func TestAskRecordsErrorStatusWhenEngineFails(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT COUNT(*) FROM person"}}
	engine := &fakeEngine{err: errors.New("warehouse unreachable")}
	mock := &fakeMock{result: query.Result{Columns: []string{"count"}, Rows: [][]any{{int64(9)}}, RowCount: 1}}
	hist := newFakeHistory()

	h := NewHandler(cfg, Dependencies{Translator: translator, Engine: engine, Mock: mock, History: hist})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/ask", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if len(hist.saved) != 1 {
		t.Fatalf("saved records = %d", len(hist.saved))
	}
	saved := hist.saved[0]
	if saved.Status != history.StatusError {
		t.Fatalf("saved status = %s, want %s", saved.Status, history.StatusError)
	}
	if saved.Source != history.SourceMock || saved.ErrorText != "warehouse unreachable" {
		t.Fatalf("saved source/error = %s/%q", saved.Source, saved.ErrorText)
	}
}

func TestAskWithoutEngineUsesMockDirectly(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT COUNT(*) FROM person"}}
	mock := &fakeMock{result: query.Result{Columns: []string{"count"}, Rows: [][]any{{int64(7)}}, RowCount: 1}}

	h := NewHandler(cfg, Dependencies{Translator: translator, Mock: mock})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/ask", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["source"] != "mock" {
		t.Fatalf("source = %v", body["source"])
	}
	if body["execution_error"] != nil {
		t.Fatalf("execution_error = %v", body["execution_error"])
	}
}

func TestAskWithExecuteFalseSkipsExecutionAndHistory(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT COUNT(*) FROM person"}}
	engine := &fakeEngine{result: query.Result{RowCount: 1}}
	hist := newFakeHistory()

	h := NewHandler(cfg, Dependencies{Translator: translator, Engine: engine, History: hist})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/ask", `{"question":"how many patients?","execute":false}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["executed"] != false {
		t.Fatalf("executed = %v", body["executed"])
	}
	if engine.lastSQL != "" {
		t.Fatalf("engine ran %q", engine.lastSQL)
	}
	if len(hist.saved) != 0 {
		t.Fatalf("saved records = %d", len(hist.saved))
	}
}

func TestAskSucceedsWhenHistorySaveFails(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT COUNT(*) FROM person"}}
	engine := &fakeEngine{result: query.Result{Columns: []string{"count"}, Rows: [][]any{{int64(1)}}, RowCount: 1}}
	hist := newFakeHistory()
	hist.saveErr = errors.New("history db down")

	h := NewHandler(cfg, Dependencies{Translator: translator, Engine: engine, History: hist})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/ask", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["history_id"] != nil {
		t.Fatalf("history_id = %v", body["history_id"])
	}
}

func TestAskWithNoExecutionPathReturns400(t *testing.T) {
	cfg := testConfig(t, nil)
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT COUNT(*) FROM person"}}

	h := NewHandler(cfg, Dependencies{Translator: translator})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSONRequest("/v1/ask", `{"question":"how many patients?"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "QUERY_EXECUTION_FAILED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

// Package omopqlctl implements the command line client for the omopql API.
// Every command maps onto one HTTP endpoint; results render as text tables
// unless -json switches the output to the raw response.
package omopqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

type Options struct {
	BaseURL    string
	APIKey     string
	TenantID   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("omopqlctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "omopql API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	tenantID := fs.String("tenant-id", defaults.TenantID, "Tenant ID header (used when auth is disabled)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	rowLimit := fs.Int("row-limit", 0, "Row limit for ask and query (0 uses the server default)")
	rawJSON := fs.Bool("json", false, "Print the raw JSON response instead of a table")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	method := ""
	path := ""
	var payload any
	tabular := false

	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "schema":
		method, path = http.MethodGet, "/v1/schema"
	case "providers":
		method, path = http.MethodGet, "/v1/providers"
	case "provider-check":
		method, path = http.MethodPost, "/v1/providers/check"
	case "ask", "translate":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintf(stderr, "%s requires a question\n", command)
			return 2
		}
		method, path = http.MethodPost, "/v1/"+command
		payload = map[string]any{"question": question, "row_limit": *rowLimit}
		tabular = command == "ask"
	case "query":
		sqlText := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if sqlText == "" {
			_, _ = fmt.Fprintln(stderr, "query requires a SQL statement")
			return 2
		}
		method, path = http.MethodPost, "/v1/query"
		payload = map[string]any{"sql": sqlText, "row_limit": *rowLimit}
		tabular = true
	case "history":
		method, path = http.MethodGet, "/v1/history"
	case "history-get", "history-delete", "history-star", "history-archive":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintf(stderr, "%s requires a history id\n", command)
			return 2
		}
		id := strings.TrimSpace(fs.Arg(1))
		switch command {
		case "history-get":
			method, path = http.MethodGet, "/v1/history/"+id
		case "history-delete":
			method, path = http.MethodDelete, "/v1/history/"+id
		case "history-star":
			method, path = http.MethodPost, "/v1/history/"+id+"/star"
		case "history-archive":
			method, path = http.MethodPost, "/v1/history/"+id+"/archive"
		}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, *apiKey, *tenantID, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if !*rawJSON {
		if command == "history" {
			if ok := renderHistory(stdout, responseBody); ok {
				return 0
			}
		} else if tabular {
			if ok := renderResult(stdout, responseBody); ok {
				return 0
			}
		}
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey, tenantID string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}
	if strings.TrimSpace(tenantID) != "" {
		req.Header.Set("X-Tenant-ID", strings.TrimSpace(tenantID))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

// renderResult prints the SQL, explanation, and result rows of an ask or
// query response. Returns false when the body does not look like one so the
// caller falls back to raw JSON.
func renderResult(w io.Writer, raw []byte) bool {
	var response struct {
		SQL            string   `json:"sql"`
		Explanation    string   `json:"explanation"`
		Source         string   `json:"source"`
		Columns        []string `json:"columns"`
		Rows           [][]any  `json:"rows"`
		RowCount       int      `json:"row_count"`
		ExecutionError string   `json:"execution_error"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return false
	}
	if len(response.Columns) == 0 {
		return false
	}

	if response.SQL != "" {
		_, _ = fmt.Fprintln(w, response.SQL)
		_, _ = fmt.Fprintln(w, "")
	}
	if response.Explanation != "" {
		_, _ = fmt.Fprintln(w, response.Explanation)
		_, _ = fmt.Fprintln(w, "")
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(response.Columns)
	for _, row := range response.Rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			if cell == nil {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, fmt.Sprintf("%v", cell))
		}
		table.Append(cells)
	}
	table.Render()

	_, _ = fmt.Fprintf(w, "%d row(s) from %s\n", response.RowCount, response.Source)
	if response.ExecutionError != "" {
		_, _ = fmt.Fprintf(w, "warning: %s\n", response.ExecutionError)
	}
	return true
}

func renderHistory(w io.Writer, raw []byte) bool {
	var response struct {
		Items []struct {
			ID       string `json:"id"`
			Question string `json:"question"`
			Source   string `json:"source"`
			Status   string `json:"status"`
			RowCount int    `json:"row_count"`
			Starred  bool   `json:"starred"`
			Created  string `json:"created_at"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return false
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Question", "Source", "Status", "Rows", "Starred", "Created"})
	for _, item := range response.Items {
		table.Append([]string{
			item.ID,
			item.Question,
			item.Source,
			item.Status,
			fmt.Sprintf("%d", item.RowCount),
			fmt.Sprintf("%t", item.Starred),
			item.Created,
		})
	}
	table.Render()
	return true
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: omopqlctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                   GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                    GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema                   GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  providers                GET /v1/providers")
	_, _ = fmt.Fprintln(w, "  provider-check           POST /v1/providers/check")
	_, _ = fmt.Fprintln(w, "  ask <question>           POST /v1/ask")
	_, _ = fmt.Fprintln(w, "  translate <question>     POST /v1/translate")
	_, _ = fmt.Fprintln(w, "  query <sql>              POST /v1/query")
	_, _ = fmt.Fprintln(w, "  history                  GET /v1/history")
	_, _ = fmt.Fprintln(w, "  history-get <id>         GET /v1/history/{id}")
	_, _ = fmt.Fprintln(w, "  history-delete <id>      DELETE /v1/history/{id}")
	_, _ = fmt.Fprintln(w, "  history-star <id>        POST /v1/history/{id}/star")
	_, _ = fmt.Fprintln(w, "  history-archive <id>     POST /v1/history/{id}/archive")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

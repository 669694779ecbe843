package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Warehouse     WarehouseConfig
	History       HistoryConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	UI            UIConfig
	Mock          MockConfig
	Demo          DemoConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WarehouseConfig points at the OMOP CDM database queries run against.
// An empty DSN means no warehouse is configured and answers fall back to
// the demo engine or mock rows.
type WarehouseConfig struct {
	DSN             string
	Schema          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type HistoryConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// AIConfig selects the language-model provider and carries credentials for
// every supported provider. Only the selected provider's block is validated.
type AIConfig struct {
	Provider    string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	OpenAI     OpenAIConfig
	Azure      AzureConfig
	Anthropic  AnthropicConfig
	Google     GoogleConfig
	Deepseek   DeepseekConfig
	Databricks DatabricksConfig
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AzureConfig struct {
	Endpoint   string
	Deployment string
	APIKey     string
	APIVersion string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Version string
}

type GoogleConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type DeepseekConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type DatabricksConfig struct {
	Host     string
	Token    string
	Endpoint string
}

type UIConfig struct {
	SchemaSampleRows int
}

type MockConfig struct {
	Seed        int64
	DefaultRows int
}

type DemoConfig struct {
	Enabled bool
	Prefix  string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	_ = godotenv.Load()
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("OMOPQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid OMOPQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	stringKeys := []struct {
		key string
		dst *string
	}{
		{"OMOPQL_SERVICE_NAME", &cfg.Service.Name},
		{"OMOPQL_HTTP_ADDR", &cfg.HTTP.Address},
		{"OMOPQL_WAREHOUSE_DSN", &cfg.Warehouse.DSN},
		{"OMOPQL_WAREHOUSE_SCHEMA", &cfg.Warehouse.Schema},
		{"OMOPQL_HISTORY_DSN", &cfg.History.DSN},
		{"OMOPQL_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint},
		{"OMOPQL_OBJECTSTORE_REGION", &cfg.ObjectStore.Region},
		{"OMOPQL_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket},
		{"OMOPQL_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID},
		{"OMOPQL_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey},
		{"OMOPQL_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix},
		{"OMOPQL_AI_PROVIDER", &cfg.AI.Provider},
		{"OMOPQL_OPENAI_BASE_URL", &cfg.AI.OpenAI.BaseURL},
		{"OMOPQL_OPENAI_API_KEY", &cfg.AI.OpenAI.APIKey},
		{"OMOPQL_OPENAI_MODEL", &cfg.AI.OpenAI.Model},
		{"OMOPQL_AZURE_ENDPOINT", &cfg.AI.Azure.Endpoint},
		{"OMOPQL_AZURE_DEPLOYMENT", &cfg.AI.Azure.Deployment},
		{"OMOPQL_AZURE_API_KEY", &cfg.AI.Azure.APIKey},
		{"OMOPQL_AZURE_API_VERSION", &cfg.AI.Azure.APIVersion},
		{"OMOPQL_ANTHROPIC_BASE_URL", &cfg.AI.Anthropic.BaseURL},
		{"OMOPQL_ANTHROPIC_API_KEY", &cfg.AI.Anthropic.APIKey},
		{"OMOPQL_ANTHROPIC_MODEL", &cfg.AI.Anthropic.Model},
		{"OMOPQL_ANTHROPIC_VERSION", &cfg.AI.Anthropic.Version},
		{"OMOPQL_GOOGLE_BASE_URL", &cfg.AI.Google.BaseURL},
		{"OMOPQL_GOOGLE_API_KEY", &cfg.AI.Google.APIKey},
		{"OMOPQL_GOOGLE_MODEL", &cfg.AI.Google.Model},
		{"OMOPQL_DEEPSEEK_BASE_URL", &cfg.AI.Deepseek.BaseURL},
		{"OMOPQL_DEEPSEEK_API_KEY", &cfg.AI.Deepseek.APIKey},
		{"OMOPQL_DEEPSEEK_MODEL", &cfg.AI.Deepseek.Model},
		{"OMOPQL_DATABRICKS_HOST", &cfg.AI.Databricks.Host},
		{"OMOPQL_DATABRICKS_TOKEN", &cfg.AI.Databricks.Token},
		{"OMOPQL_DATABRICKS_ENDPOINT", &cfg.AI.Databricks.Endpoint},
		{"OMOPQL_DEMO_PREFIX", &cfg.Demo.Prefix},
		{"OMOPQL_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys},
	}
	for _, entry := range stringKeys {
		if err := applyString(lookup, entry.key, entry.dst); err != nil {
			return Config{}, err
		}
	}

	intKeys := []struct {
		key string
		dst *int
	}{
		{"OMOPQL_WAREHOUSE_MAX_OPEN_CONNS", &cfg.Warehouse.MaxOpenConns},
		{"OMOPQL_WAREHOUSE_MAX_IDLE_CONNS", &cfg.Warehouse.MaxIdleConns},
		{"OMOPQL_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns},
		{"OMOPQL_HISTORY_MAX_IDLE_CONNS", &cfg.History.MaxIdleConns},
		{"OMOPQL_AI_MAX_TOKENS", &cfg.AI.MaxTokens},
		{"OMOPQL_UI_SCHEMA_SAMPLE_ROWS", &cfg.UI.SchemaSampleRows},
		{"OMOPQL_MOCK_DEFAULT_ROWS", &cfg.Mock.DefaultRows},
	}
	for _, entry := range intKeys {
		if err := applyInt(lookup, entry.key, entry.dst); err != nil {
			return Config{}, err
		}
	}

	durationKeys := []struct {
		key string
		dst *time.Duration
	}{
		{"OMOPQL_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"OMOPQL_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"OMOPQL_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"OMOPQL_WAREHOUSE_CONN_MAX_IDLE_TIME", &cfg.Warehouse.ConnMaxIdleTime},
		{"OMOPQL_WAREHOUSE_CONN_MAX_LIFETIME", &cfg.Warehouse.ConnMaxLifetime},
		{"OMOPQL_HISTORY_CONN_MAX_IDLE_TIME", &cfg.History.ConnMaxIdleTime},
		{"OMOPQL_HISTORY_CONN_MAX_LIFETIME", &cfg.History.ConnMaxLifetime},
		{"OMOPQL_AI_TIMEOUT", &cfg.AI.Timeout},
	}
	for _, entry := range durationKeys {
		if err := applyDuration(lookup, entry.key, entry.dst); err != nil {
			return Config{}, err
		}
	}

	boolKeys := []struct {
		key string
		dst *bool
	}{
		{"OMOPQL_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL},
		{"OMOPQL_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket},
		{"OMOPQL_DEMO_ENABLED", &cfg.Demo.Enabled},
		{"OMOPQL_LOG_JSON", &cfg.Observability.LogJSON},
		{"OMOPQL_AUTH_REQUIRED", &cfg.Auth.Required},
	}
	for _, entry := range boolKeys {
		if err := applyBool(lookup, entry.key, entry.dst); err != nil {
			return Config{}, err
		}
	}

	if err := applyFloat(lookup, "OMOPQL_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "OMOPQL_MOCK_SEED", &cfg.Mock.Seed); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "OMOPQL_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.AI.Provider != "" && !isKnownProvider(cfg.AI.Provider) {
		return Config{}, fmt.Errorf("unknown OMOPQL_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	return cfg, nil
}

func isKnownProvider(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "azure", "anthropic", "google", "deepseek", "databricks":
		return true
	default:
		return false
	}
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "omopql-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Schema:          "cdm",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		History: HistoryConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "omopql",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			AutoCreateBucket: true,
		},
		AI: AIConfig{
			Provider:    "",
			Temperature: 0.1,
			MaxTokens:   1024,
			Timeout:     30 * time.Second,
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com",
				Model:   "gpt-4o",
			},
			Azure: AzureConfig{
				APIVersion: "2024-02-15-preview",
			},
			Anthropic: AnthropicConfig{
				BaseURL: "https://api.anthropic.com",
				Model:   "claude-3-5-sonnet-latest",
				Version: "2023-06-01",
			},
			Google: GoogleConfig{
				BaseURL: "https://generativelanguage.googleapis.com",
				Model:   "gemini-1.5-pro-latest",
			},
			Deepseek: DeepseekConfig{
				BaseURL: "https://api.deepseek.com",
				Model:   "deepseek-chat",
			},
		},
		UI: UIConfig{
			SchemaSampleRows: 5,
		},
		Mock: MockConfig{
			Seed:        1,
			DefaultRows: 12,
		},
		Demo: DemoConfig{
			Enabled: false,
			Prefix:  "demo",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}

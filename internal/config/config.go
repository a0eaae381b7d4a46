// Package config provides service configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. configs/.env file (loaded via godotenv, matching the stack launcher)
//  3. Config file (~/.honeyrag/config.yaml)
//  4. Default values (match the reference deployment)
//
// Main configuration categories:
//   - Model: vLLM endpoint, model identifier, sampling parameters
//   - Retrieval: LightRAG server port/URL
//   - Serve: HTTP listen port, CORS, proxy trust, rate limiting
//   - Storage: sqlite database path for conversation history
//   - Observability: OTLP trace exporter endpoint
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidPort indicates a TCP port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidURL indicates an endpoint URL is not a valid http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrInvalidHistoryLimit indicates the history limit is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history limit")

	// ErrInvalidDBPath indicates the sqlite database path is unusable.
	ErrInvalidDBPath = errors.New("invalid database path")
)

// Defaults matching the reference HoneyRAG deployment.
const (
	// DefaultModelName is the model served by the local vLLM instance.
	DefaultModelName = "Qwen/Qwen3-8B"

	// DefaultVLLMURL is the OpenAI-compatible base URL of the vLLM server.
	DefaultVLLMURL = "http://localhost:8000/v1"

	// DefaultVLLMAPIKey is a placeholder key; the local vLLM server ignores it.
	DefaultVLLMAPIKey = "not-needed"

	// DefaultLightRAGPort is the port of the local LightRAG server.
	DefaultLightRAGPort = 9621

	// DefaultServePort is the port the agent service listens on.
	DefaultServePort = 8081

	// DefaultMaxHistoryMessages is the default number of messages to load.
	DefaultMaxHistoryMessages = 100

	// MaxAllowedHistoryMessages is the absolute maximum to prevent OOM.
	MaxAllowedHistoryMessages = 10000
)

// Config stores service configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Model configuration (vLLM, OpenAI-compatible API)
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	VLLMURL     string  `mapstructure:"vllm_url" json:"vllm_url"`
	VLLMAPIKey  string  `mapstructure:"vllm_api_key" json:"vllm_api_key"` // SENSITIVE: masked in MarshalJSON
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Retrieval configuration (LightRAG server)
	LightRAGPort int    `mapstructure:"lightrag_port" json:"lightrag_port"`
	LightRAGURL  string `mapstructure:"lightrag_url" json:"lightrag_url"` // Overrides LightRAGPort when set

	// Serve configuration
	Port        int      `mapstructure:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // Per-IP token bucket burst (0 = default)

	// Conversation history configuration
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Storage configuration
	DBPath string `mapstructure:"db_path" json:"db_path"` // sqlite database path

	// Observability configuration
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"` // empty = tracing disabled
}

// Load loads configuration.
// Priority: Environment variables > configs/.env > config file > defaults.
func Load() (*Config, error) {
	// The stack launcher keeps shared settings in configs/.env; load it into
	// the process environment first so viper's env bindings pick it up.
	// A missing file is not an error.
	_ = godotenv.Load(filepath.Join("configs", ".env"))

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".honeyrag")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Normalize before validation: a negative burst means "use the default".
	if cfg.RateBurst < 0 {
		cfg.RateBurst = 0
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Model defaults (match the local vLLM deployment)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("vllm_url", DefaultVLLMURL)
	v.SetDefault("vllm_api_key", DefaultVLLMAPIKey)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 2048)

	// Retrieval defaults
	v.SetDefault("lightrag_port", DefaultLightRAGPort)
	v.SetDefault("lightrag_url", "")

	// Serve defaults
	v.SetDefault("port", DefaultServePort)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)

	// History defaults
	v.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	// Storage defaults
	v.SetDefault("db_path", "honeyrag.db")

	// Observability defaults (empty = disabled)
	v.SetDefault("otlp_endpoint", "")
}

// bindEnvVariables binds environment variables explicitly.
// VLLM_MODEL, LIGHTRAG_PORT and AGNO_PORT keep the names used across the
// HoneyRAG stack so one .env file configures every service.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "VLLM_MODEL")
	mustBind("vllm_url", "VLLM_URL")
	mustBind("vllm_api_key", "VLLM_API_KEY")
	mustBind("lightrag_port", "LIGHTRAG_PORT")
	mustBind("lightrag_url", "LIGHTRAG_URL")
	mustBind("port", "AGNO_PORT")
	mustBind("cors_origins", "HONEYRAG_CORS_ORIGINS")
	mustBind("trust_proxy", "HONEYRAG_TRUST_PROXY")
	mustBind("rate_burst", "HONEYRAG_RATE_BURST")
	mustBind("max_history_messages", "HONEYRAG_MAX_HISTORY")
	mustBind("db_path", "HONEYRAG_DB_PATH")
	mustBind("otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// RetrievalURL returns the LightRAG server base URL.
// LIGHTRAG_URL wins when set; otherwise the URL is derived from LIGHTRAG_PORT
// on localhost, matching the reference deployment.
func (c *Config) RetrievalURL() string {
	if c.LightRAGURL != "" {
		return c.LightRAGURL
	}
	return fmt.Sprintf("http://localhost:%d", c.LightRAGPort)
}

// ServeAddr returns the host:port the HTTP server binds to.
func (c *Config) ServeAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets keep the first
// and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.VLLMAPIKey = maskSecret(a.VLLMAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

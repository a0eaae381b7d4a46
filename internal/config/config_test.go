package config

import (
	"errors"
	"strings"
	"testing"
)

// newTestConfig returns a config populated with defaults, bypassing Load()
// so tests do not depend on the host environment.
func newTestConfig() *Config {
	return &Config{
		ModelName:          DefaultModelName,
		VLLMURL:            DefaultVLLMURL,
		VLLMAPIKey:         DefaultVLLMAPIKey,
		Temperature:        0.7,
		MaxTokens:          2048,
		LightRAGPort:       DefaultLightRAGPort,
		Port:               DefaultServePort,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
		DBPath:             "honeyrag.db",
	}
}

func TestLoadDefaults(t *testing.T) {
	// Isolate from the host: fresh HOME (no config.yaml) and no stack env vars.
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		"VLLM_MODEL", "VLLM_URL", "VLLM_API_KEY",
		"LIGHTRAG_PORT", "LIGHTRAG_URL", "AGNO_PORT",
		"HONEYRAG_DB_PATH", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ModelName != DefaultModelName {
		t.Errorf("expected default ModelName %q, got %q", DefaultModelName, cfg.ModelName)
	}
	if cfg.VLLMURL != DefaultVLLMURL {
		t.Errorf("expected default VLLMURL %q, got %q", DefaultVLLMURL, cfg.VLLMURL)
	}
	if cfg.LightRAGPort != DefaultLightRAGPort {
		t.Errorf("expected default LightRAGPort %d, got %d", DefaultLightRAGPort, cfg.LightRAGPort)
	}
	if cfg.Port != DefaultServePort {
		t.Errorf("expected default Port %d, got %d", DefaultServePort, cfg.Port)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("expected default Temperature 0.7, got %f", cfg.Temperature)
	}
	if cfg.MaxHistoryMessages != DefaultMaxHistoryMessages {
		t.Errorf("expected default MaxHistoryMessages %d, got %d", DefaultMaxHistoryMessages, cfg.MaxHistoryMessages)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VLLM_MODEL", "Qwen/Qwen2.5-1.5B-Instruct")
	t.Setenv("LIGHTRAG_PORT", "9999")
	t.Setenv("AGNO_PORT", "9080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ModelName != "Qwen/Qwen2.5-1.5B-Instruct" {
		t.Errorf("VLLM_MODEL override not applied, got %q", cfg.ModelName)
	}
	if cfg.LightRAGPort != 9999 {
		t.Errorf("LIGHTRAG_PORT override not applied, got %d", cfg.LightRAGPort)
	}
	if cfg.Port != 9080 {
		t.Errorf("AGNO_PORT override not applied, got %d", cfg.Port)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AGNO_PORT", "70000")

	if _, err := Load(); !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("Load() error = %v, want %v", err, ErrInvalidPort)
	}
}

func TestLoadNormalizesNegativeRateBurst(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HONEYRAG_RATE_BURST", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.RateBurst != 0 {
		t.Errorf("expected negative rate burst normalized to 0, got %d", cfg.RateBurst)
	}
}

func TestRetrievalURL(t *testing.T) {
	cfg := newTestConfig()

	if got := cfg.RetrievalURL(); got != "http://localhost:9621" {
		t.Errorf("expected derived URL http://localhost:9621, got %q", got)
	}

	cfg.LightRAGURL = "http://rag.internal:9621"
	if got := cfg.RetrievalURL(); got != "http://rag.internal:9621" {
		t.Errorf("explicit LightRAGURL should win, got %q", got)
	}
}

func TestServeAddr(t *testing.T) {
	cfg := newTestConfig()
	if got := cfg.ServeAddr(); got != "0.0.0.0:8081" {
		t.Errorf("expected 0.0.0.0:8081, got %q", got)
	}
}

func TestMarshalJSONMasksAPIKey(t *testing.T) {
	cfg := newTestConfig()
	cfg.VLLMAPIKey = "sk-very-secret-key-12345"

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() failed: %v", err)
	}

	if strings.Contains(string(data), "sk-very-secret-key-12345") {
		t.Error("API key leaked in JSON output")
	}
	if !strings.Contains(string(data), maskedValue) {
		t.Error("expected masked value in JSON output")
	}
}

func TestStringMasksAPIKey(t *testing.T) {
	cfg := newTestConfig()
	cfg.VLLMAPIKey = "sk-very-secret-key-12345"

	if strings.Contains(cfg.String(), "sk-very-secret-key-12345") {
		t.Error("API key leaked in String() output")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"empty", "", ""},
		{"short fully masked", "secret", maskedValue},
		{"exactly 8 fully masked", "12345678", maskedValue},
		{"long keeps edges", "my_long_secret_key_123", "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.input); got != tt.expect {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid defaults", func(*Config) {}, nil},
		{"empty model", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"model with whitespace", func(c *Config) { c.ModelName = "bad model" }, ErrInvalidModelName},
		{"bad vllm scheme", func(c *Config) { c.VLLMURL = "ftp://localhost:8000" }, ErrInvalidURL},
		{"vllm url no host", func(c *Config) { c.VLLMURL = "http://" }, ErrInvalidURL},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"temperature negative", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"max tokens zero", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"lightrag port zero", func(c *Config) { c.LightRAGPort = 0 }, ErrInvalidPort},
		{"lightrag port too big", func(c *Config) { c.LightRAGPort = 70000 }, ErrInvalidPort},
		{"explicit lightrag url skips port check", func(c *Config) {
			c.LightRAGPort = 0
			c.LightRAGURL = "http://rag:9621"
		}, nil},
		{"bad lightrag url", func(c *Config) { c.LightRAGURL = "not-a-url" }, ErrInvalidURL},
		{"serve port zero", func(c *Config) { c.Port = 0 }, ErrInvalidPort},
		{"history limit zero", func(c *Config) { c.MaxHistoryMessages = 0 }, ErrInvalidHistoryLimit},
		{"history limit too big", func(c *Config) { c.MaxHistoryMessages = MaxAllowedHistoryMessages + 1 }, ErrInvalidHistoryLimit},
		{"empty db path", func(c *Config) { c.DBPath = "  " }, ErrInvalidDBPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := newTestConfig()
	cfg.RateBurst = -5

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if cfg.RateBurst != -5 {
		t.Errorf("Validate() mutated RateBurst to %d", cfg.RateBurst)
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if !errors.Is(cfg.Validate(), ErrConfigNil) {
		t.Error("expected ErrConfigNil for nil config")
	}
}

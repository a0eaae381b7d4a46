package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks all configuration values and returns the first problem found.
// Called by Load() so an invalid configuration never reaches the rest of the
// service (fail-fast).
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	if err := c.validateServe(); err != nil {
		return err
	}
	return c.validateStorage()
}

func (c *Config) validateModel() error {
	name := strings.TrimSpace(c.ModelName)
	if name == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("%w: model name contains whitespace: %q", ErrInvalidModelName, c.ModelName)
	}

	if err := validateHTTPURL(c.VLLMURL); err != nil {
		return fmt.Errorf("%w: vllm_url %q: %w", ErrInvalidURL, c.VLLMURL, err)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 1_000_000 {
		return fmt.Errorf("%w: must be between 1 and 1000000, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	return nil
}

func (c *Config) validateRetrieval() error {
	if c.LightRAGURL != "" {
		if err := validateHTTPURL(c.LightRAGURL); err != nil {
			return fmt.Errorf("%w: lightrag_url %q: %w", ErrInvalidURL, c.LightRAGURL, err)
		}
		return nil
	}
	if c.LightRAGPort < 1 || c.LightRAGPort > 65535 {
		return fmt.Errorf("%w: lightrag_port must be 1-65535, got %d", ErrInvalidPort, c.LightRAGPort)
	}
	return nil
}

func (c *Config) validateServe() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: serve port must be 1-65535, got %d", ErrInvalidPort, c.Port)
	}
	if c.MaxHistoryMessages < 1 || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidHistoryLimit, MaxAllowedHistoryMessages, c.MaxHistoryMessages)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("%w: db_path is empty", ErrInvalidDBPath)
	}
	return nil
}

// validateHTTPURL checks that s parses as an absolute http(s) URL with a host.
func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

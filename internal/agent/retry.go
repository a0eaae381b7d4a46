package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/honeyrag/honeyrag/internal/model"
)

// RetryConfig configures the retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// rateLimitPatterns and transientPatterns classify error text.
//
// NOTE: String matching is used because the OpenAI-compatible surface of
// vLLM does not expose typed errors for transient failures.
var (
	rateLimitPatterns = []string{"rate limit", "quota exceeded", "429"}
	transientPatterns = []string{
		"500", "502", "503", "504", "unavailable",
		"connection reset", "connection refused", "timeout", "temporary",
	}
)

// rateLimitedError reports whether err looks like a rate-limit rejection.
func rateLimitedError(err error) bool {
	return err != nil && containsAny(err.Error(), rateLimitPatterns...)
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return containsAny(s, rateLimitPatterns...) || containsAny(s, transientPatterns...)
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// generateWithRetry calls the model with exponential backoff retry.
//
// Streaming turns only retry while no chunk has been delivered yet; once
// output reached the client a retry would duplicate text.
func (a *Agent) generateWithRetry(ctx context.Context, req model.Request, cb model.StreamCallback) (*model.Response, error) {
	var lastErr error
	delay := a.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		// Rate limit each attempt, not just the first.
		if a.rateLimit != nil {
			if err := a.rateLimit.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
			}
		}

		var (
			resp    *model.Response
			err     error
			chunked bool
		)
		if cb == nil {
			resp, err = a.mdl.Generate(ctx, req)
		} else {
			wrapped := func(cctx context.Context, chunk string) error {
				chunked = true
				return cb(cctx, chunk)
			}
			resp, err = a.mdl.GenerateStream(ctx, req, wrapped)
		}
		if err == nil {
			a.logger.Debug("model call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		if chunked || !retryableError(err) {
			return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
		}
		if attempt == a.retry.MaxRetries {
			break
		}

		a.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > a.retry.MaxInterval {
			delay = a.retry.MaxInterval
		}
	}

	if rateLimitedError(lastErr) {
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, lastErr)
	}
	return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, lastErr)
}

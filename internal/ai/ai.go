// Package ai defines the completion provider used to answer agent questions.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Provider answers a single question.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete runs one completion. Errors wrap the sentinel errors below.
	Complete(ctx context.Context, params CompletionParams) (*Completion, error)
}

// CompletionParams contains parameters for a completion
type CompletionParams struct {
	OrgID     uuid.UUID // Organization ID for tracing
	Question  string    // End-user question
	System    string    // System prompt; SystemPrompt when empty
	MaxTokens int       // Output token limit; provider default when zero
}

// Completion is the provider answer
type Completion struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks API usage for metering and monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
	MaxTokens      int           // Default output token limit
}

// WithDefaults fills unset fields.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	return c
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidRequest indicates the provider rejected the request
	EAIInvalidRequest = errors.New("ai provider rejected the request")

	// EAIContentPolicy indicates the prompt violates content policy
	EAIContentPolicy = errors.New("prompt violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIEmptyResponse indicates the provider returned no text
	EAIEmptyResponse = errors.New("ai provider returned an empty response")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// StatusError maps an HTTP status returned by a provider API to a sentinel error.
func StatusError(status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return EAIUnauthorized
	case http.StatusTooManyRequests:
		return EAIRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return EAITimeout
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", EAIInvalidRequest, message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, 529:
		return EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", status, message)
	}
}

// WithRetry calls fn until it succeeds, returns a non-retryable error, or
// MaxRetries attempts are spent. The delay doubles after every attempt.
func WithRetry(ctx context.Context, cfg ProviderConfig, logger *slog.Logger, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
		logger.Info("Retrying AI request", "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}

// SystemPrompt frames every agent completion.
const SystemPrompt = `You are the support assistant of a business on our platform.
Answer the customer's question briefly and accurately, in the language the question was asked in.
If you do not know the answer, say so and suggest contacting the business directly.
Never invent prices, schedules or policies.`

// SystemOrDefault returns the system prompt to send for params.
func (p CompletionParams) SystemOrDefault() string {
	if p.System != "" {
		return p.System
	}
	return SystemPrompt
}

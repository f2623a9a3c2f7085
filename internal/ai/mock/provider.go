package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/DukeRupert/agentguard/internal/ai"
)

// DefaultAnswer is returned when no custom response is configured.
const DefaultAnswer = "Gracias por tu pregunta. Un miembro del equipo te responderá en breve."

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	Response *ai.Completion
	Err      error

	// Call tracking for testing
	Calls     int
	LastParam ai.CompletionParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

func (p *Provider) Name() string { return "mock" }

// Complete returns the configured response, or a canned answer with token
// counts derived from the text lengths.
func (p *Provider) Complete(ctx context.Context, params ai.CompletionParams) (*ai.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls++
	p.LastParam = params

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Response != nil {
		out := *p.Response
		return &out, nil
	}

	p.logger.Debug("mock completion", "org_id", params.OrgID)
	return &ai.Completion{
		Text: DefaultAnswer,
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  approxTokens(params.SystemOrDefault()) + approxTokens(params.Question),
			OutputTokens: approxTokens(DefaultAnswer),
			Duration:     5 * time.Millisecond,
		},
	}, nil
}

// CallCount returns the number of Complete calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = 0
	p.LastParam = ai.CompletionParams{}
	p.Response = nil
	p.Err = nil
}

// approxTokens uses the usual four characters per token estimate.
func approxTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}

// Package openai implements ai.Provider with the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/agentguard/internal/ai"
	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = goopenai.GPT4oMini

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // Optional, for compatible gateways and tests
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using go-openai
type Provider struct {
	config Config
	client *goopenai.Client
	logger *slog.Logger
}

// New creates a new OpenAI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.ProviderConfig.RequestTimeout}

	return &Provider{
		config: config,
		client: goopenai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

func (p *Provider) Name() string { return "openai" }

// Complete answers a question with a chat completion
func (p *Provider) Complete(ctx context.Context, params ai.CompletionParams) (*ai.Completion, error) {
	startTime := time.Now()

	if strings.TrimSpace(params.Question) == "" {
		return nil, ai.WrapError("complete", fmt.Errorf("%w: empty question", ai.EAIInvalidRequest))
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.ProviderConfig.MaxTokens
	}
	req := goopenai.ChatCompletionRequest{
		Model:     p.config.Model,
		MaxTokens: maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: params.SystemOrDefault()},
			{Role: goopenai.ChatMessageRoleUser, Content: params.Question},
		},
	}

	var resp goopenai.ChatCompletionResponse
	err := ai.WithRetry(ctx, p.config.ProviderConfig, p.logger, func(ctx context.Context) error {
		r, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return mapError(ctx, err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ai.WrapError("parse response", ai.EAIEmptyResponse)
	}
	if resp.Choices[0].FinishReason == goopenai.FinishReasonContentFilter {
		return nil, ai.WrapError("parse response", ai.EAIContentPolicy)
	}

	return &ai.Completion{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: ai.UsageInfo{
			Model:        p.config.Model,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			Duration:     time.Since(startTime),
		},
	}, nil
}

// mapError converts go-openai errors to the ai sentinel errors.
func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "content_policy_violation" || apiErr.Type == "content_policy_violation" {
			return ai.EAIContentPolicy
		}
		return ai.StatusError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return ai.StatusError(reqErr.HTTPStatusCode, reqErr.Error())
	}

	// Transport failures
	return fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
}

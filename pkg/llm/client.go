package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/retry"
)

// OpenAIPhraser phrases answers through an OpenAI-compatible endpoint.
type OpenAIPhraser struct {
	client      *openai.Client
	endpoint    string
	model       string
	maxTokens   int
	temperature float32
	breaker     *CircuitBreaker
	retry       *retry.Config
	logger      *zap.Logger
}

// Config holds configuration for creating a phraser.
type Config struct {
	Endpoint  string // Base URL; empty uses the provider default
	Model     string
	APIKey    string
	MaxTokens int
}

// NewOpenAIPhraser creates a phraser for an OpenAI-compatible endpoint.
func NewOpenAIPhraser(cfg *Config, logger *zap.Logger) (*OpenAIPhraser, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return &OpenAIPhraser{
		client:      openai.NewClientWithConfig(clientConfig),
		endpoint:    clientConfig.BaseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: 0.3,
		breaker:     NewCircuitBreaker("openai", DefaultCircuitBreakerConfig()),
		retry:       phraseRetryConfig(),
		logger:      logger.Named("llm.openai"),
	}, nil
}

func (p *OpenAIPhraser) Phrase(ctx context.Context, req PhraseRequest) (string, error) {
	if ok, err := p.breaker.Allow(); !ok {
		return "", NewError(ErrorTypeEndpoint, "provider unavailable", false, err)
	}

	var content string
	start := time.Now()
	err := retry.DoIfRetryable(ctx, p.retry, func() error {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: p.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
				{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
			},
			MaxTokens:   p.maxTokens,
			Temperature: p.temperature,
		})
		if err != nil {
			return p.classify(err)
		}
		if len(resp.Choices) == 0 {
			return NewError(ErrorTypeUnknown, "no choices in response", false, nil)
		}
		content = resp.Choices[0].Message.Content

		p.logger.Debug("Phrase completed",
			zap.String("model", p.model),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))
		return nil
	})
	if err != nil {
		p.breaker.RecordFailure()
		p.logger.Error("Phrase request failed",
			zap.String("model", p.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}

	p.breaker.RecordSuccess()
	return strings.TrimSpace(content), nil
}

func (p *OpenAIPhraser) classify(err error) error {
	statusCode := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		statusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		statusCode = reqErr.HTTPStatusCode
	}
	return classifyWithStatus(err, statusCode, p.model, p.endpoint)
}

// Model returns the configured model name.
func (p *OpenAIPhraser) Model() string {
	return p.model
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/retry"
)

const defaultAnthropicMaxTokens = 512

// AnthropicPhraser phrases answers with the Anthropic Messages API.
type AnthropicPhraser struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	breaker   *CircuitBreaker
	retry     *retry.Config
	logger    *zap.Logger
}

// NewAnthropicPhraser creates a phraser for the Anthropic API.
func NewAnthropicPhraser(cfg *Config, logger *zap.Logger) (*AnthropicPhraser, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicPhraser{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		breaker:   NewCircuitBreaker("anthropic", DefaultCircuitBreakerConfig()),
		retry:     phraseRetryConfig(),
		logger:    logger.Named("llm.anthropic"),
	}, nil
}

func (p *AnthropicPhraser) Phrase(ctx context.Context, req PhraseRequest) (string, error) {
	if ok, err := p.breaker.Allow(); !ok {
		return "", NewError(ErrorTypeEndpoint, "provider unavailable", false, err)
	}

	prompt := buildPrompt(req)
	var content string
	start := time.Now()
	err := retry.DoIfRetryable(ctx, p.retry, func() error {
		resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:     anthropic.Model(p.model),
			System:    systemMessage,
			MaxTokens: p.maxTokens,
			Messages: []anthropic.Message{
				{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
					{Type: "text", Text: &prompt},
				}},
			},
		})
		if err != nil {
			return p.classify(err)
		}
		content = firstText(resp)
		if content == "" {
			return NewError(ErrorTypeUnknown, "no text in response", false, nil)
		}

		p.logger.Debug("Phrase completed",
			zap.String("model", p.model),
			zap.Int("input_tokens", resp.Usage.InputTokens),
			zap.Int("output_tokens", resp.Usage.OutputTokens))
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

func firstText(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}

func (p *AnthropicPhraser) classify(err error) error {
	statusCode := 0
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		statusCode = reqErr.StatusCode
	}
	return classifyWithStatus(err, statusCode, p.model, "")
}

// Model returns the configured model name.
func (p *AnthropicPhraser) Model() string {
	return p.model
}

package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

// AnthropicClient implements Client using the Anthropic messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       *slog.Logger
}

// AnthropicConfig configures an AnthropicClient. The API key is passed
// explicitly rather than read from ambient state.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Logger    *slog.Logger
}

// NewAnthropicClient creates a Client backed by the Anthropic API.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: maxTokens,
		log:       cfg.Logger,
	}, nil
}

// Complete sends a single completion request. Any API failure is wrapped in
// ErrUnavailable so callers can trigger their fallbacks.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	if c.log != nil {
		c.log.Debug("anthropic call starting", "model", c.model, "userPromptLen", len(userPrompt))
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		if c.log != nil {
			c.log.Error("anthropic call failed", "duration", time.Since(start), "error", err)
		}
		return "", fmt.Errorf("%w: anthropic: %v", ErrUnavailable, err)
	}
	if c.log != nil {
		c.log.Debug("anthropic call completed", "duration", time.Since(start), "stopReason", msg.StopReason)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text content in response", ErrUnavailable)
}

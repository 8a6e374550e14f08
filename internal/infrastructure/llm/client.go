package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"PaperDigest/internal/config"
)

// Client is a thin wrapper over an OpenAI-compatible chat completions API.
// DeepSeek exposes the same wire protocol, so one client serves both.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
}

// NewClient builds a chat client from oracle configuration.
func NewClient(cfg config.OracleConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:     openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout(),
	}
}

// Complete sends a single user message and returns the raw assistant text.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int64, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion: response has no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"companion-safety/internal/llm"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client wraps the OpenAI chat completions API
type Client struct {
	api     *goopenai.Client
	logger  *zap.Logger
	baseURL string
}

// Config for OpenAI client
type Config struct {
	APIKey  string
	BaseURL string // empty means the public endpoint
	Timeout time.Duration
}

// NewClient creates a new OpenAI client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger.Info("OpenAI client initialized", zap.String("base_url", clientCfg.BaseURL))

	return &Client{
		api:     goopenai.NewClientWithConfig(clientCfg),
		logger:  logger,
		baseURL: clientCfg.BaseURL,
	}, nil
}

// Close is a no-op; the HTTP transport is shared
func (c *Client) Close() error {
	return nil
}

// Complete sends the scenario prompt as the only user turn
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	chatReq := goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.BuildSystemPrompt(req.Context)},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         req.Temperature,
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Error("OpenAI API error",
				zap.String("model", req.Model),
				zap.Int("status", apiErr.HTTPStatusCode),
				zap.String("message", apiErr.Message))
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}

	c.logger.Debug("OpenAI completion received",
		zap.String("model", req.Model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return resp.Choices[0].Message.Content, nil
}

// GetModelInfo returns provider information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": string(llm.ProviderOpenAI),
		"base_url": c.baseURL,
	}
}

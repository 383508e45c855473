package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"companion-safety/internal/llm"

	"go.uber.org/zap"
)

const apiVersion = "2023-06-01"

// Client calls the Anthropic Messages API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config for Anthropic client
type Config struct {
	APIKey  string
	BaseURL string // Default: "https://api.anthropic.com/v1"
	Timeout time.Duration
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a new Anthropic client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	logger.Info("Anthropic client initialized", zap.String("base_url", cfg.BaseURL))

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Close closes the Anthropic client
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Complete sends the scenario prompt as the only user turn
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	reqBody := messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    llm.BuildSystemPrompt(req.Context),
		Messages: []message{
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Anthropic API error",
			zap.String("model", req.Model),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", parsed.Error.Message)
	}

	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("empty response from anthropic")
	}

	c.logger.Debug("Anthropic completion received",
		zap.String("model", req.Model),
		zap.Int("output_tokens", parsed.Usage.OutputTokens))

	// first content block carries the reply text
	return parsed.Content[0].Text, nil
}

// GetModelInfo returns provider information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": string(llm.ProviderAnthropic),
		"base_url": c.baseURL,
		"version":  apiVersion,
	}
}

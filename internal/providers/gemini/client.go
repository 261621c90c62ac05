// Package gemini completes advisory prompts with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"callcopilot/internal/domain"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 60 * time.Second
)

// Config controls the Gemini client. BaseURL is only set for tests and
// proxies.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Client implements ports.AdvisoryEngine on top of genai.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{client: client, model: cfg.Model, timeout: cfg.Timeout, log: log.Named("gemini")}, nil
}

func (c *Client) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(prompt.Temperature)),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt.Instruction), config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no completion returned")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty completion returned")
	}
	c.log.Debug("completion finished", zap.String("model", c.model), zap.Int("response_len", len(text)))
	return text, nil
}

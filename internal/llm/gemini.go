package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient calls Gemini through the Google GenAI SDK.
type GeminiClient struct {
	opts   Opts
	models *genai.Models
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, opts Opts) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: gemini: api key is required")
	}
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 300
	}
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("llm: gemini: create client: %w", err)
	}
	return &GeminiClient{opts: opts, models: client.Models}, nil
}

// Complete sends req and returns the concatenated text parts.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, c.opts.Timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.opts.MaxTokens
	}
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.opts.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", classify(ctx, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

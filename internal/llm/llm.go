// Package llm talks to the reasoning service used for intent
// classification, step location and question answering.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable indicates the provider could not be reached or
	// returned a non-success status.
	ErrUnavailable = errors.New("llm: provider unavailable")

	// ErrTimeout indicates the request exceeded its deadline.
	ErrTimeout = errors.New("llm: request timed out")

	// ErrEmptyResponse indicates the provider answered with no text.
	ErrEmptyResponse = errors.New("llm: empty response")

	// ErrInvalidOutput indicates the response text could not be parsed
	// into the expected structure.
	ErrInvalidOutput = errors.New("llm: invalid output")
)

// Request is a single prompt/response exchange.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int // 0 uses the client default
}

// Client completes prompts. Implementations must honour ctx cancellation.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Opts configures a provider client.
type Opts struct {
	Provider  string // "anthropic" or "gemini"
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

// New builds the client for opts.Provider.
func New(ctx context.Context, opts Opts) (Client, error) {
	switch opts.Provider {
	case "anthropic", "":
		return NewAnthropicClient(opts)
	case "gemini":
		return NewGeminiClient(ctx, opts)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}

// withTimeout applies d to ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classify maps context deadline errors to ErrTimeout.
func classify(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// Func adapts a plain function to Client.
type Func func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Package knowledge answers general guard questions from a static handbook
// using the reasoning service.
package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zulandar/watchtower/internal/llm"
)

//go:embed knowledge.md
var defaultDocument string

const systemPreamble = `You are WatchTower, a helpful SMS assistant for security guards.

%s

RESPONSE RULES:
- Keep responses SHORT (2-3 sentences max)
- Be DIRECTIVE ("Do this" not "You might want to...")
- Use the handbook above to give accurate answers
- If the handbook does not cover it, tell the guard to text 'supervisor'
- Sound like a calm supervisor, not a chatbot
- No bullet points
- Be professional but friendly`

// Answerer answers free-form questions.
type Answerer struct {
	client    llm.Client
	system    string
	maxTokens int
	log       zerolog.Logger
}

// Opts configures an Answerer.
type Opts struct {
	Client    llm.Client
	Document  string // handbook text; empty uses the built-in handbook
	MaxTokens int    // default 300
	Logger    zerolog.Logger
}

// New creates an Answerer.
func New(opts Opts) (*Answerer, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("knowledge: llm client is required")
	}
	doc := strings.TrimSpace(opts.Document)
	if doc == "" {
		doc = strings.TrimSpace(defaultDocument)
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Answerer{
		client:    opts.Client,
		system:    fmt.Sprintf(systemPreamble, doc),
		maxTokens: maxTokens,
		log:       opts.Logger,
	}, nil
}

// LoadDocument reads a handbook file. An empty path returns the built-in one.
func LoadDocument(path string) (string, error) {
	if path == "" {
		return defaultDocument, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("knowledge: read %s: %w", path, err)
	}
	return string(data), nil
}

// Answer returns the model's reply to question, trimmed.
func (a *Answerer) Answer(ctx context.Context, question string) (string, error) {
	reply, err := a.client.Complete(ctx, llm.Request{
		System:    a.system,
		Prompt:    question,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("knowledge: answer: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("knowledge: answer: %w", llm.ErrEmptyResponse)
	}
	a.log.Debug().Int("chars", len(reply)).Msg("answered question")
	return reply, nil
}

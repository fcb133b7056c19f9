package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/watchtower/internal/llm"
)

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(Opts{})
	assert.ErrorContains(t, err, "llm client is required")
}

func TestAnswer_UsesHandbookAsSystemPrompt(t *testing.T) {
	var got llm.Request
	client := llm.Func(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return "  Payday is every Friday by direct deposit.  \n", nil
	})
	a, err := New(Opts{Client: client, Logger: zerolog.Nop()})
	require.NoError(t, err)

	answer, err := a.Answer(context.Background(), "when is payday")
	require.NoError(t, err)
	assert.Equal(t, "Payday is every Friday by direct deposit.", answer)
	assert.Equal(t, "when is payday", got.Prompt)
	assert.Equal(t, 300, got.MaxTokens)
	assert.Contains(t, got.System, "Site Guard Handbook")
	assert.Contains(t, got.System, "RESPONSE RULES")
}

func TestAnswer_CustomDocument(t *testing.T) {
	var system string
	client := llm.Func(func(_ context.Context, req llm.Request) (string, error) {
		system = req.System
		return "ok", nil
	})
	a, err := New(Opts{Client: client, Document: "Gate code changes monthly.", MaxTokens: 120})
	require.NoError(t, err)
	_, err = a.Answer(context.Background(), "gate code?")
	require.NoError(t, err)
	assert.Contains(t, system, "Gate code changes monthly.")
	assert.NotContains(t, system, "Site Guard Handbook")
}

func TestAnswer_Errors(t *testing.T) {
	failing := llm.Func(func(context.Context, llm.Request) (string, error) {
		return "", llm.ErrUnavailable
	})
	a, _ := New(Opts{Client: failing})
	_, err := a.Answer(context.Background(), "q")
	assert.True(t, errors.Is(err, llm.ErrUnavailable))

	blank := llm.Func(func(context.Context, llm.Request) (string, error) { return "   ", nil })
	a, _ = New(Opts{Client: blank})
	_, err = a.Answer(context.Background(), "q")
	assert.True(t, errors.Is(err, llm.ErrEmptyResponse))
}

func TestLoadDocument(t *testing.T) {
	doc, err := LoadDocument("")
	require.NoError(t, err)
	assert.Contains(t, doc, "Site Guard Handbook")

	path := filepath.Join(t.TempDir(), "kb.md")
	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))
	doc, err = LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", doc)

	_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

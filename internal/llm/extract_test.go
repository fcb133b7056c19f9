package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type label struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want label
	}{
		{"bare", `{"intent":"NEXT","confidence":80}`, label{"NEXT", 80}},
		{"fenced", "```json\n{\"intent\":\"STUCK\",\"confidence\":55}\n```", label{"STUCK", 55}},
		{"prose around", `Sure! Here you go: {"intent":"SOLVED","confidence":0.9} hope that helps`, label{"SOLVED", 0.9}},
		{"brace in string", `{"intent":"CLARIFY}","confidence":10}`, label{"CLARIFY}", 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON[label](tt.raw, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, err := ExtractJSON[label]("NEXT", nil)
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestExtractJSON_Unbalanced(t *testing.T) {
	_, err := ExtractJSON[label](`{"intent":"NEXT"`, nil)
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestExtractJSON_Validator(t *testing.T) {
	_, err := ExtractJSON[label](`{"intent":""}`, func(l label) error {
		if l.Intent == "" {
			return errors.New("intent is required")
		}
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOutput)
	assert.Contains(t, err.Error(), "intent is required")
}

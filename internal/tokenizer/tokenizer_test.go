package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodingName(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o-mini", "o200k_base"},
		{"gpt-4o", "o200k_base"},
		{"gpt-4", "cl100k_base"},
		{"gpt-3.5-turbo-0125", "cl100k_base"},
		{"llama3", DefaultEncoding},
		{"", DefaultEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodingName(tt.model))
		})
	}
}

func TestCount(t *testing.T) {
	c, err := New("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "o200k_base", c.Name())
	assert.Equal(t, 2, c.Count("hello world"))
	assert.Equal(t, 0, c.Count(""))

	// Special tokens are text, not control sequences.
	assert.Greater(t, c.Count("<|endoftext|>"), 1)
}

func TestCountDiffersFromApproximation(t *testing.T) {
	count, err := CountFunc("gpt-4o-mini")
	require.NoError(t, err)

	text := strings.Repeat("a ", 400)
	assert.Equal(t, 200, Approximate(text))
	assert.InDelta(t, 400, count(text), 5)
}

func TestSharedEncoder(t *testing.T) {
	a, err := New("gpt-4")
	require.NoError(t, err)
	b, err := New("unknown-model")
	require.NoError(t, err)
	assert.Same(t, a.enc, b.enc)
}

func TestApproximate(t *testing.T) {
	assert.Equal(t, 0, Approximate(""))
	assert.Equal(t, 1, Approximate("abc"))
	assert.Equal(t, 2, Approximate("héllo"))
}

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modelrelay/relay/pkg/schema"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
		// surrogate pairs count as two utf16 units each
		{"𝄞𝄞", 1},
		{"𝄞𝄞𝄞", 2},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EstimateTokens(c.text), "%q", c.text)
	}
}

func TestEstimateInputTokens(t *testing.T) {
	msgs := []schema.ChatMessage{{Role: "user", Content: schema.StrPtr("Hello")}}
	got := estimateInputTokens(msgs)
	assert.Greater(t, got, 0)

	// estimation covers the serialized form, so more messages mean more tokens
	more := append(msgs, schema.ChatMessage{Role: "assistant", Content: schema.StrPtr("Hi there")})
	assert.Greater(t, estimateInputTokens(more), got)
}

func TestEstimateOutputTokens(t *testing.T) {
	assert.Equal(t, 0, estimateOutputTokens(nil))
	assert.Equal(t, 0, estimateOutputTokens(&schema.ChatResponse{}))

	resp := &schema.ChatResponse{Choices: []schema.Choice{{
		Message: &schema.ChatMessage{Role: "assistant", Content: schema.StrPtr("12345678")},
	}}}
	assert.Equal(t, 2, estimateOutputTokens(resp))
}

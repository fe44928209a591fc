package anthropic_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/provider/anthropic"
	"github.com/modelrelay/relay/pkg/schema"
)

func newAdapter(t *testing.T) provider.Adapter {
	t.Helper()
	a, err := anthropic.NewAdapter(provider.Config{ID: "anthropic", Enabled: true})
	require.NoError(t, err)
	return a
}

func TestTransformRequestSystemConcatenation(t *testing.T) {
	a := newAdapter(t)

	req := &schema.ChatRequest{
		Model:     "claude-3.5-sonnet",
		MaxTokens: 256,
		Messages: []schema.ChatMessage{
			{Role: "system", Content: schema.StrPtr("Be brief.")},
			{Role: "user", Content: schema.StrPtr("Hi")},
			{Role: "system", Content: schema.StrPtr("Be polite.")},
			{Role: "assistant", Content: schema.StrPtr("Hello!")},
		},
	}

	out, err := a.TransformRequest(req)
	require.NoError(t, err)

	data, _ := json.Marshal(out)
	var native map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &native))

	// both system messages fold into one field, original order kept
	assert.Equal(t, "Be brief.\nBe polite.", native["system"])
	// alias resolves to the dated native id
	assert.Equal(t, "claude-3-5-sonnet-20241022", native["model"])

	msgs := native["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "assistant", msgs[1].(map[string]interface{})["role"])
}

func TestTransformRequestToolRole(t *testing.T) {
	a := newAdapter(t)

	req := &schema.ChatRequest{
		Model:     "claude-3.5-sonnet",
		MaxTokens: 256,
		Messages: []schema.ChatMessage{
			{Role: "user", Content: schema.StrPtr("What is the weather?")},
			{Role: "assistant", Content: schema.StrPtr("Checking.")},
			{Role: "tool", Content: schema.StrPtr(`{"temp": 21}`), ToolCallID: "call-1"},
		},
	}

	out, err := a.TransformRequest(req)
	require.NoError(t, err)

	data, _ := json.Marshal(out)
	var native map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &native))

	// the messages API only accepts user and assistant roles
	msgs := native["messages"].([]interface{})
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[2].(map[string]interface{})["role"])
	assert.Equal(t, `{"temp": 21}`, msgs[2].(map[string]interface{})["content"])
}

func TestTransformRequestMaxTokensFallback(t *testing.T) {
	a := newAdapter(t)

	req := &schema.ChatRequest{
		Model:    "claude-3.5-sonnet",
		Messages: []schema.ChatMessage{{Role: "user", Content: schema.StrPtr("Hi")}},
	}

	out, err := a.TransformRequest(req)
	require.NoError(t, err)

	data, _ := json.Marshal(out)
	var native map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &native))

	// Anthropic requires max_tokens; the model's configured limit fills in
	assert.Equal(t, float64(8192), native["max_tokens"])
}

func TestTransformRequestStopSequences(t *testing.T) {
	a := newAdapter(t)

	req := &schema.ChatRequest{
		Model:     "claude-3.5-sonnet",
		MaxTokens: 10,
		Stop:      &schema.Stop{Val: []string{"END", "HALT"}},
		Messages:  []schema.ChatMessage{{Role: "user", Content: schema.StrPtr("Hi")}},
	}

	out, err := a.TransformRequest(req)
	require.NoError(t, err)

	data, _ := json.Marshal(out)
	assert.Contains(t, string(data), `"stop_sequences":["END","HALT"]`)
}

func TestTransformResponse(t *testing.T) {
	a := newAdapter(t)

	raw := []byte(`{
		"id": "msg_01",
		"model": "claude-3-5-sonnet-20241022",
		"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "world"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 4}
	}`)

	resp, err := a.TransformResponse(raw, &schema.ChatRequest{Model: "claude-3.5-sonnet"})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hello world", resp.Choices[0].Message.Text())
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	require.NotNil(t, resp.Choices[0].FinishReason)
	assert.Equal(t, schema.FinishStop, *resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestStopReasonMapping(t *testing.T) {
	a := newAdapter(t)

	cases := map[string]string{
		"end_turn":      schema.FinishStop,
		"stop_sequence": schema.FinishStop,
		"max_tokens":    schema.FinishLength,
		"tool_use":      schema.FinishToolCalls,
		"refusal":       schema.FinishContentFilter,
		"mystery":       schema.FinishStop,
	}

	for native, want := range cases {
		raw := []byte(`{"id":"m","content":[{"type":"text","text":"x"}],"stop_reason":"` + native + `"}`)
		resp, err := a.TransformResponse(raw, nil)
		require.NoError(t, err)
		assert.Equal(t, want, *resp.Choices[0].FinishReason, native)
	}
}

func TestTransformStreamChunk(t *testing.T) {
	a := newAdapter(t)
	req := &schema.ChatRequest{Model: "claude-3.5-sonnet"}

	// non-content events produce nothing
	assert.Nil(t, a.TransformStreamChunk(`{"type":"message_start","message":{}}`, req))
	assert.Nil(t, a.TransformStreamChunk(`{"type":"content_block_start"}`, req))
	assert.Nil(t, a.TransformStreamChunk(`{"type":"ping"}`, req))
	assert.Nil(t, a.TransformStreamChunk(`{"type":"message_stop"}`, req))
	assert.Nil(t, a.TransformStreamChunk(`{broken`, req))
	assert.Nil(t, a.TransformStreamChunk("[DONE]", req))

	chunk := a.TransformStreamChunk(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}`, req)
	require.NotNil(t, chunk)
	assert.Equal(t, "chat.completion.chunk", chunk.Object)
	assert.Equal(t, "Hi", chunk.DeltaText())

	final := a.TransformStreamChunk(`{"type":"message_delta","delta":{"stop_reason":"max_tokens"},"usage":{"output_tokens":42}}`, req)
	require.NotNil(t, final)
	require.NotNil(t, final.Choices[0].FinishReason)
	assert.Equal(t, schema.FinishLength, *final.Choices[0].FinishReason)
	// the final event's usage is authoritative and must reach accounting
	require.NotNil(t, final.Usage)
	assert.Equal(t, 42, final.Usage.CompletionTokens)
}

func TestAuthHeaders(t *testing.T) {
	a := newAdapter(t)
	headers := a.AuthHeaders("sk-ant-test")
	assert.Equal(t, "sk-ant-test", headers["x-api-key"])
	assert.Equal(t, "2023-06-01", headers["anthropic-version"])

	custom, err := anthropic.NewAdapter(provider.Config{
		ID:      "anthropic",
		Extra:   map[string]string{"version": "2024-10-22"},
		Enabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-10-22", custom.AuthHeaders("k")["anthropic-version"])
}

func TestEndpointURL(t *testing.T) {
	a := newAdapter(t)
	assert.Equal(t, "https://api.anthropic.com/v1/messages",
		a.EndpointURL(provider.EndpointChat, nil))
}

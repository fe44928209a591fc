package custom_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/provider/custom"
	"github.com/modelrelay/relay/pkg/schema"
)

const (
	reqTpl  = `{"target": "{{.model}}", "prompt": {{json .messages}}}`
	respTpl = `{"id": "{{.output.id}}", "choices": [{"index": 0, "message": {"role": "assistant", "content": {{json .output.text}}}, "finish_reason": "stop"}]}`
)

func newAdapter(t *testing.T) *custom.Adapter {
	t.Helper()
	a, err := custom.New(custom.Definition{
		ID:               "acme",
		Name:             "Acme LLM",
		BaseURL:          "https://llm.acme.dev/api",
		Models:           []provider.ModelConfig{{ID: "acme-large", Enabled: true}},
		RequestTemplate:  reqTpl,
		ResponseTemplate: respTpl,
		Enabled:          true,
	})
	require.NoError(t, err)
	return a
}

func TestNewRejectsBadTemplate(t *testing.T) {
	_, err := custom.New(custom.Definition{
		ID:              "broken",
		BaseURL:         "https://x.test",
		RequestTemplate: `{{.unclosed`,
	})
	assert.Error(t, err, "template syntax errors surface at registration")

	_, err = custom.New(custom.Definition{BaseURL: "https://x.test"})
	assert.Error(t, err, "id is required")

	_, err = custom.New(custom.Definition{ID: "nourl"})
	assert.Error(t, err, "base_url is required")
}

func TestTransformRequest(t *testing.T) {
	a := newAdapter(t)

	out, err := a.TransformRequest(&schema.ChatRequest{
		Model:    "acme-large",
		Messages: []schema.ChatMessage{{Role: "user", Content: schema.StrPtr("Hi")}},
	})
	require.NoError(t, err)

	raw, ok := out.(json.RawMessage)
	require.True(t, ok)

	var native map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &native))
	assert.Equal(t, "acme-large", native["target"])

	prompt := native["prompt"].([]interface{})
	require.Len(t, prompt, 1)
	assert.Equal(t, "user", prompt[0].(map[string]interface{})["role"])
}

func TestTransformResponse(t *testing.T) {
	a := newAdapter(t)

	resp, err := a.TransformResponse([]byte(`{"id": "r-1", "text": "Hello!"}`), &schema.ChatRequest{Model: "acme-large"})
	require.NoError(t, err)
	assert.Equal(t, "r-1", resp.ID)
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "acme-large", resp.Model)
	assert.NotZero(t, resp.Created)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hello!", resp.Choices[0].Message.Text())
}

func TestTransformResponseFatalOnBadOutput(t *testing.T) {
	a, err := custom.New(custom.Definition{
		ID:               "bad",
		BaseURL:          "https://x.test",
		RequestTemplate:  `{}`,
		ResponseTemplate: `this is not json`,
	})
	require.NoError(t, err)

	_, err = a.TransformResponse([]byte(`{}`), nil)
	assert.Error(t, err, "non-streaming template failures are fatal")

	// the same failure on the streaming path is swallowed
	assert.Nil(t, a.TransformStreamChunk(`{}`, nil))
}

func TestTransformStreamChunk(t *testing.T) {
	a := newAdapter(t)

	assert.Nil(t, a.TransformStreamChunk("[DONE]", nil))

	chunk := a.TransformStreamChunk(`{"id": "c-1", "text": "Hi"}`, nil)
	require.NotNil(t, chunk)
	assert.Equal(t, "chat.completion.chunk", chunk.Object)
	require.Len(t, chunk.Choices, 1)
}

func TestHeaderAuthDefaults(t *testing.T) {
	a := newAdapter(t)
	headers := a.AuthHeaders("secret")
	assert.Equal(t, "Bearer secret", headers["Authorization"])
}

func TestHeaderAuthCustom(t *testing.T) {
	a, err := custom.New(custom.Definition{
		ID:               "hdr",
		BaseURL:          "https://x.test",
		RequestTemplate:  `{}`,
		ResponseTemplate: `{}`,
		Auth: custom.AuthConfig{
			Mode:         custom.AuthHeader,
			Header:       "X-Api-Token",
			ExtraHeaders: map[string]string{"X-Client": "relay"},
		},
	})
	require.NoError(t, err)

	headers := a.AuthHeaders("secret")
	assert.Equal(t, "secret", headers["X-Api-Token"], "no scheme prefix unless configured")
	assert.Equal(t, "relay", headers["X-Client"])
}

func TestQueryAuth(t *testing.T) {
	a, err := custom.New(custom.Definition{
		ID:               "qp",
		BaseURL:          "https://x.test/api",
		ChatPath:         "/generate",
		RequestTemplate:  `{}`,
		ResponseTemplate: `{}`,
		Auth:             custom.AuthConfig{Mode: custom.AuthQuery, QueryParam: "key"},
	})
	require.NoError(t, err)

	url := a.BuildAuthenticatedURL(provider.EndpointChat, "secret", nil)
	assert.Equal(t, "https://x.test/api/generate?key=secret", url)

	// key stays out of the headers in query mode
	headers := a.AuthHeaders("secret")
	_, found := headers["Authorization"]
	assert.False(t, found)
}

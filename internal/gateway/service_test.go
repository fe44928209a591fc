package gateway_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelrelay/relay/internal/gateway"
	"github.com/modelrelay/relay/internal/keys"
	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/provider/openai"
	"github.com/modelrelay/relay/internal/usage"
	"github.com/modelrelay/relay/pkg/schema"
)

// captureRecorder remembers every usage record for assertions.
type captureRecorder struct {
	mu      sync.Mutex
	records []*usage.Record
}

func (c *captureRecorder) Record(rec *usage.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *captureRecorder) all() []*usage.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*usage.Record(nil), c.records...)
}

func newService(t *testing.T, upstreamURL string, apiKeys map[string]string) (*gateway.Service, *captureRecorder) {
	t.Helper()

	adapter, err := openai.NewAdapter(provider.Config{
		ID:      "openai",
		BaseURL: upstreamURL + "/v1",
		Enabled: true,
	})
	require.NoError(t, err)

	registry := provider.NewRegistry()
	registry.Register(adapter)

	rec := &captureRecorder{}
	svc := gateway.NewService(zap.NewNop(), registry, &keys.Static{Keys: apiKeys},
		rec, &http.Client{}, 5*time.Second)
	return svc, rec
}

func chatReq(model string) *schema.ChatRequest {
	return &schema.ChatRequest{
		Model:    model,
		Messages: []schema.ChatMessage{{Role: "user", Content: schema.StrPtr("Hello")}},
	}
}

func TestChatCompletionSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer upstream.Close()

	svc, rec := newService(t, upstream.URL, map[string]string{"openai": "sk-test"})

	resp, apiErr := svc.ChatCompletion(context.Background(), chatReq("gpt-4o"))
	require.Nil(t, apiErr)
	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "Hi!", resp.Choices[0].Message.Text())

	records := rec.all()
	require.Len(t, records, 1, "usage fires exactly once")
	assert.Equal(t, "openai", records[0].ProviderID)
	assert.Equal(t, 12, records[0].InputTokens)
	assert.Equal(t, 3, records[0].OutputTokens)
	assert.False(t, records[0].Estimated)
	assert.True(t, records[0].Success)
}

func TestChatCompletionEstimatesWhenUsageAbsent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c","choices":[{"index":0,"message":{"role":"assistant","content":"12345678"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	svc, rec := newService(t, upstream.URL, map[string]string{"openai": "sk-test"})

	_, apiErr := svc.ChatCompletion(context.Background(), chatReq("gpt-4o"))
	require.Nil(t, apiErr)

	records := rec.all()
	require.Len(t, records, 1)
	assert.True(t, records[0].Estimated)
	assert.Greater(t, records[0].InputTokens, 0)
	assert.Equal(t, 2, records[0].OutputTokens)
}

func TestChatCompletionModelNotFound(t *testing.T) {
	svc, rec := newService(t, "http://unused.invalid", map[string]string{"openai": "sk-test"})

	_, apiErr := svc.ChatCompletion(context.Background(), chatReq("unknown"))
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Model not found: unknown", apiErr.Message)
	assert.Equal(t, schema.CodeModelNotFound, apiErr.Code)
	assert.Equal(t, schema.ErrTypeInvalidRequest, apiErr.Type)

	assert.Empty(t, rec.all(), "no usage before a provider is resolved")
}

func TestChatCompletionMissingAPIKey(t *testing.T) {
	svc, rec := newService(t, "http://unused.invalid", map[string]string{})

	_, apiErr := svc.ChatCompletion(context.Background(), chatReq("gpt-4o"))
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, schema.CodeMissingAPIKey, apiErr.Code)
	assert.Equal(t, schema.ErrTypeAuthentication, apiErr.Type)

	records := rec.all()
	require.Len(t, records, 1, "failures after routing still account usage")
	assert.False(t, records[0].Success)
}

func TestChatCompletionUpstreamStatusMapping(t *testing.T) {
	cases := []struct {
		upstream int
		want     int
	}{
		{429, 429}, // whitelisted, passes through
		{503, 503},
		{418, 400}, // unlisted 4xx collapses to 400
		{530, 502}, // unlisted 5xx collapses to 502
	}

	for _, c := range cases {
		status := c.upstream
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unhappy","type":"rate_limit_error"}}`))
		}))

		svc, rec := newService(t, upstream.URL, map[string]string{"openai": "sk-test"})
		_, apiErr := svc.ChatCompletion(context.Background(), chatReq("gpt-4o"))
		upstream.Close()

		require.NotNil(t, apiErr, "status %d", c.upstream)
		assert.Equal(t, c.want, apiErr.Status, "status %d", c.upstream)
		assert.Equal(t, "upstream unhappy", apiErr.Message)
		assert.Equal(t, "rate_limit_error", apiErr.Type)

		records := rec.all()
		require.Len(t, records, 1, "failed requests still account usage")
		assert.False(t, records[0].Success)
		assert.True(t, records[0].Estimated)
	}
}

func TestChatCompletionUnreachableUpstream(t *testing.T) {
	svc, rec := newService(t, "http://127.0.0.1:1", map[string]string{"openai": "sk-test"})

	_, apiErr := svc.ChatCompletion(context.Background(), chatReq("gpt-4o"))
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, schema.ErrTypeAPI, apiErr.Type)
	require.Len(t, rec.all(), 1)
}

func TestOpenStreamRelay(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, block := range []string{
			`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"Hi"}}]}`,
			`data: {"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`data: [DONE]`,
		} {
			_, _ = w.Write([]byte(block + "\n\n"))
			flusher.Flush()
		}
	}))
	defer upstream.Close()

	svc, rec := newService(t, upstream.URL, map[string]string{"openai": "sk-test"})

	sess, apiErr := svc.OpenStream(context.Background(), chatReq("gpt-4o"))
	require.Nil(t, apiErr)

	var buf bytes.Buffer
	sess.Run(&buf, nil)

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"content":"Hi"`)
	assert.Contains(t, lines[1], `"finish_reason":"stop"`)
	assert.Equal(t, "data: [DONE]", lines[2], "[DONE] passes through verbatim")

	records := rec.all()
	require.Len(t, records, 1, "usage fires exactly once after the stream ends")
	assert.True(t, records[0].Streamed)
	assert.True(t, records[0].Success)
	assert.True(t, records[0].Estimated)
	assert.Equal(t, 1, records[0].OutputTokens, `"Hi" estimates to one token`)
}

func TestOpenStreamPrefersUpstreamUsage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, block := range []string{
			`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"Hi"}}]}`,
			`data: {"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":5,"total_tokens":12}}`,
			`data: [DONE]`,
		} {
			_, _ = w.Write([]byte(block + "\n\n"))
		}
	}))
	defer upstream.Close()

	svc, rec := newService(t, upstream.URL, map[string]string{"openai": "sk-test"})

	sess, apiErr := svc.OpenStream(context.Background(), chatReq("gpt-4o"))
	require.Nil(t, apiErr)

	var buf bytes.Buffer
	sess.Run(&buf, nil)

	records := rec.all()
	require.Len(t, records, 1)
	assert.False(t, records[0].Estimated)
	assert.Equal(t, 7, records[0].InputTokens)
	assert.Equal(t, 5, records[0].OutputTokens)
}

func TestOpenStreamSynthesizesDone(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"x"}}]}` + "\n\n"))
	}))
	defer upstream.Close()

	svc, _ := newService(t, upstream.URL, map[string]string{"openai": "sk-test"})

	sess, apiErr := svc.OpenStream(context.Background(), chatReq("gpt-4o"))
	require.Nil(t, apiErr)

	var buf bytes.Buffer
	sess.Run(&buf, nil)

	assert.True(t, strings.HasSuffix(buf.String(), "data: [DONE]\n\n"),
		"missing upstream [DONE] is synthesized")
}

func TestOpenStreamSkipsUnparseableBlocks(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, block := range []string{
			": heartbeat",
			`data: {broken json`,
			`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"ok"}}]}`,
			`data: [DONE]`,
		} {
			_, _ = w.Write([]byte(block + "\n\n"))
		}
	}))
	defer upstream.Close()

	svc, _ := newService(t, upstream.URL, map[string]string{"openai": "sk-test"})

	sess, apiErr := svc.OpenStream(context.Background(), chatReq("gpt-4o"))
	require.Nil(t, apiErr)

	var buf bytes.Buffer
	sess.Run(&buf, nil)

	events := strings.Split(strings.TrimSpace(buf.String()), "\n\n")
	require.Len(t, events, 2, "heartbeats and broken chunks are dropped")
	assert.Contains(t, events[0], `"content":"ok"`)
	assert.Equal(t, "data: [DONE]", events[1])
}

func TestOpenStreamErrorsBeforeWrite(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	defer upstream.Close()

	svc, rec := newService(t, upstream.URL, map[string]string{"openai": "sk-test"})

	sess, apiErr := svc.OpenStream(context.Background(), chatReq("gpt-4o"))
	require.Nil(t, sess)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	require.Len(t, rec.all(), 1)
	assert.False(t, rec.all()[0].Success)
}

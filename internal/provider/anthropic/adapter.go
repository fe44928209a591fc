package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/pkg/schema"
)

func init() {
	provider.RegisterType("anthropic", NewAdapter)
}

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultVersion = "2023-06-01"

	// Anthropic requires max_tokens; used when neither the request nor the
	// model config supplies one.
	fallbackMaxTokens = 4096
)

type Adapter struct {
	provider.Base
}

func NewAdapter(cfg provider.Config) (provider.Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	return &Adapter{Base: provider.NewBase(cfg)}, nil
}

func DefaultModels() []provider.ModelConfig {
	caps := []provider.Capability{provider.CapChat, provider.CapVision, provider.CapTools}
	return []provider.ModelConfig{
		{ID: "claude-sonnet-4-20250514", Alias: "claude-sonnet-4", ContextWindow: 200000, MaxOutputTokens: 64000, InputPricePerM: 3, OutputPricePerM: 15, Capabilities: caps, Enabled: true},
		{ID: "claude-3-5-sonnet-20241022", Alias: "claude-3.5-sonnet", ContextWindow: 200000, MaxOutputTokens: 8192, InputPricePerM: 3, OutputPricePerM: 15, Capabilities: caps, Enabled: true},
		{ID: "claude-3-5-haiku-20241022", Alias: "claude-3.5-haiku", ContextWindow: 200000, MaxOutputTokens: 8192, InputPricePerM: 0.8, OutputPricePerM: 4, Capabilities: caps, Enabled: true},
		{ID: "claude-3-opus-20240229", Alias: "claude-3-opus", ContextWindow: 200000, MaxOutputTokens: 4096, InputPricePerM: 15, OutputPricePerM: 75, Capabilities: caps, Enabled: true},
	}
}

// --- Anthropic wire shapes ---

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model         string    `json:"model"`
	Messages      []message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type response struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *usage         `json:"usage"`
}

type streamEvent struct {
	Type  string      `json:"type"`
	Delta *eventDelta `json:"delta,omitempty"`
	Usage *usage      `json:"usage,omitempty"`
}

type eventDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	StopReason string `json:"stop_reason"`
}

// TransformRequest concatenates system messages, newline-joined in original
// order, into the top-level system field; remaining messages pass through in
// order, with tool results downgraded to user messages.
func (a *Adapter) TransformRequest(req *schema.ChatRequest) (interface{}, error) {
	out := request{
		Model:       a.ResolveNativeID(req.Model),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}
	if req.Stop != nil {
		out.StopSequences = req.Stop.Val
	}
	var system []string
	for _, m := range req.Messages {
		role := m.Role
		switch role {
		case "system":
			system = append(system, m.Text())
			continue
		case "tool":
			// Anthropic's messages API only accepts user and assistant.
			role = "user"
		}
		out.Messages = append(out.Messages, message{Role: role, Content: m.Text()})
	}
	out.System = strings.Join(system, "\n")
	if out.MaxTokens == 0 {
		out.MaxTokens = fallbackMaxTokens
		if m, ok := a.ModelConfig(req.Model); ok && m.MaxOutputTokens > 0 {
			out.MaxTokens = m.MaxOutputTokens
		}
	}
	return out, nil
}

func (a *Adapter) TransformResponse(raw []byte, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	var text string
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	out := &schema.ChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []schema.Choice{{
			Index:        0,
			Message:      &schema.ChatMessage{Role: "assistant", Content: schema.StrPtr(text)},
			FinishReason: mapStopReason(resp.StopReason),
		}},
	}
	if out.ID == "" {
		out.ID = "chatcmpl-" + uuid.NewString()
	}
	if out.Model == "" && req != nil {
		out.Model = req.Model
	}
	if resp.Usage != nil {
		out.Usage = &schema.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}
	return out, nil
}

// TransformStreamChunk re-frames Anthropic's heterogeneous event stream.
// Only text deltas and the stop_reason-bearing message_delta produce a
// chunk; message_start, content_block_start, ping and the rest yield nil.
func (a *Adapter) TransformStreamChunk(payload string, req *schema.ChatRequest) *schema.ChatResponse {
	if payload == "[DONE]" {
		return nil
	}
	var event streamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil
	}
	model := ""
	if req != nil {
		model = req.Model
	}
	switch event.Type {
	case "content_block_delta":
		if event.Delta == nil || event.Delta.Type != "text_delta" {
			return nil
		}
		return &schema.ChatResponse{
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []schema.Choice{{
				Delta: &schema.ChatMessage{Content: schema.StrPtr(event.Delta.Text)},
			}},
		}
	case "message_delta":
		if event.Delta == nil || event.Delta.StopReason == "" {
			return nil
		}
		chunk := &schema.ChatResponse{
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []schema.Choice{{
				Delta:        &schema.ChatMessage{},
				FinishReason: mapStopReason(event.Delta.StopReason),
			}},
		}
		// message_delta carries the authoritative output token count.
		if event.Usage != nil {
			chunk.Usage = &schema.Usage{
				PromptTokens:     event.Usage.InputTokens,
				CompletionTokens: event.Usage.OutputTokens,
				TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
			}
		}
		return chunk
	default:
		return nil
	}
}

func mapStopReason(reason string) *string {
	switch reason {
	case "max_tokens":
		return schema.StrPtr(schema.FinishLength)
	case "tool_use":
		return schema.StrPtr(schema.FinishToolCalls)
	case "refusal":
		return schema.StrPtr(schema.FinishContentFilter)
	default:
		// end_turn, stop_sequence and anything unrecognized
		return schema.StrPtr(schema.FinishStop)
	}
}

func (a *Adapter) EndpointURL(kind provider.EndpointKind, _ *provider.EndpointOptions) string {
	base := strings.TrimRight(a.Config().BaseURL, "/")
	switch kind {
	case provider.EndpointModels:
		return fmt.Sprintf("%s/models", base)
	default:
		return fmt.Sprintf("%s/messages", base)
	}
}

// AuthHeaders sends both headers Anthropic requires.
func (a *Adapter) AuthHeaders(apiKey string) map[string]string {
	version := defaultVersion
	if v, ok := a.Config().Extra["version"]; ok && v != "" {
		version = v
	}
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": version,
	}
}

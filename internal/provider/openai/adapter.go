package openai

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
	provider.RegisterType("openai", NewAdapter)
}

const defaultBaseURL = "https://api.openai.com/v1"

// Adapter speaks the OpenAI chat completions wire format, which is also the
// unified format, so the transforms are mostly shape-preserving.
type Adapter struct {
	provider.Base
}

func NewAdapter(cfg provider.Config) (provider.Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "Authorization"
		cfg.AuthScheme = "Bearer"
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	return &Adapter{Base: provider.NewBase(cfg)}, nil
}

func DefaultModels() []provider.ModelConfig {
	all := []provider.Capability{provider.CapChat, provider.CapVision, provider.CapTools, provider.CapJSONMode}
	return []provider.ModelConfig{
		{ID: "gpt-4o", ContextWindow: 128000, MaxOutputTokens: 16384, InputPricePerM: 2.5, OutputPricePerM: 10, Capabilities: all, Enabled: true},
		{ID: "gpt-4o-mini", ContextWindow: 128000, MaxOutputTokens: 16384, InputPricePerM: 0.15, OutputPricePerM: 0.6, Capabilities: all, Enabled: true},
		{ID: "gpt-4-turbo", ContextWindow: 128000, MaxOutputTokens: 4096, InputPricePerM: 10, OutputPricePerM: 30, Capabilities: all, Enabled: true},
		{ID: "gpt-3.5-turbo", ContextWindow: 16385, MaxOutputTokens: 4096, InputPricePerM: 0.5, OutputPricePerM: 1.5, Capabilities: []provider.Capability{provider.CapChat, provider.CapTools}, Enabled: true},
	}
}

// --- OpenAI wire shapes ---

type request struct {
	Model       string        `json:"model"`
	Messages    []message     `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Tools       []schema.Tool `json:"tools,omitempty"`
	ToolChoice  interface{}   `json:"tool_choice,omitempty"`
}

type message struct {
	Role       string            `json:"role"`
	Content    *string           `json:"content"`
	Name       string            `json:"name,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolCalls  []schema.ToolCall `json:"tool_calls,omitempty"`
}

type response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage"`
}

type choice struct {
	Index        int                 `json:"index"`
	Message      *schema.ChatMessage `json:"message,omitempty"`
	Delta        *schema.ChatMessage `json:"delta,omitempty"`
	FinishReason string              `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (a *Adapter) TransformRequest(req *schema.ChatRequest) (interface{}, error) {
	out := request{
		Model:       a.ResolveNativeID(req.Model),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	}
	if req.Stop != nil {
		out.Stop = req.Stop.Val
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, message{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  m.ToolCalls,
		})
	}
	return out, nil
}

func (a *Adapter) TransformResponse(raw []byte, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	out := &schema.ChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   resp.Model,
	}
	if out.ID == "" {
		out.ID = "chatcmpl-" + uuid.NewString()
	}
	if out.Created == 0 {
		out.Created = time.Now().Unix()
	}
	if out.Model == "" && req != nil {
		out.Model = req.Model
	}
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, schema.Choice{
			Index:        c.Index,
			Message:      c.Message,
			FinishReason: mapFinishReason(c.FinishReason),
		})
	}
	if resp.Usage != nil {
		out.Usage = &schema.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (a *Adapter) TransformStreamChunk(payload string, req *schema.ChatRequest) *schema.ChatResponse {
	if payload == "[DONE]" {
		return nil
	}
	var chunk response
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	out := &schema.ChatResponse{
		ID:      chunk.ID,
		Object:  "chat.completion.chunk",
		Created: chunk.Created,
		Model:   chunk.Model,
	}
	if out.Created == 0 {
		out.Created = time.Now().Unix()
	}
	for _, c := range chunk.Choices {
		uc := schema.Choice{Index: c.Index, Delta: c.Delta}
		if c.FinishReason != "" {
			uc.FinishReason = mapFinishReason(c.FinishReason)
		}
		out.Choices = append(out.Choices, uc)
	}
	// present when the client asked for stream usage (include_usage)
	if chunk.Usage != nil {
		out.Usage = &schema.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	return out
}

// mapFinishReason keeps OpenAI's vocabulary, which matches the unified one,
// and collapses anything unrecognized to "stop" so a terminal response is
// never reported as still generating.
func mapFinishReason(reason string) *string {
	switch reason {
	case schema.FinishStop, schema.FinishLength, schema.FinishToolCalls, schema.FinishContentFilter:
		return schema.StrPtr(reason)
	case "function_call":
		return schema.StrPtr(schema.FinishToolCalls)
	default:
		return schema.StrPtr(schema.FinishStop)
	}
}

func (a *Adapter) EndpointURL(kind provider.EndpointKind, _ *provider.EndpointOptions) string {
	base := strings.TrimRight(a.Config().BaseURL, "/")
	switch kind {
	case provider.EndpointModels:
		return fmt.Sprintf("%s/models", base)
	default:
		return fmt.Sprintf("%s/chat/completions", base)
	}
}

package google

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
	provider.RegisterType("google", NewAdapter)
}

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

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
	caps := []provider.Capability{provider.CapChat, provider.CapVision, provider.CapTools, provider.CapJSONMode}
	return []provider.ModelConfig{
		{ID: "gemini-2.0-flash", ContextWindow: 1048576, MaxOutputTokens: 8192, InputPricePerM: 0.1, OutputPricePerM: 0.4, Capabilities: caps, Enabled: true},
		{ID: "gemini-1.5-pro", ContextWindow: 2097152, MaxOutputTokens: 8192, InputPricePerM: 1.25, OutputPricePerM: 5, Capabilities: caps, Enabled: true},
		{ID: "gemini-1.5-flash", ContextWindow: 1048576, MaxOutputTokens: 8192, InputPricePerM: 0.075, OutputPricePerM: 0.3, Capabilities: caps, Enabled: true},
	}
}

// --- Gemini wire shapes ---

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type request struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type response struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

// TransformRequest maps assistant to Gemini's "model" role and folds system
// messages, newline-joined in original order, into systemInstruction.
func (a *Adapter) TransformRequest(req *schema.ChatRequest) (interface{}, error) {
	out := request{}
	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Text())
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		out.Contents = append(out.Contents, content{Role: role, Parts: []part{{Text: m.Text()}}})
	}
	if len(system) > 0 {
		out.SystemInstruction = &content{Parts: []part{{Text: strings.Join(system, "\n")}}}
	}
	gc := generationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.Stop != nil {
		gc.StopSequences = req.Stop.Val
	}
	if gc.Temperature != nil || gc.TopP != nil || gc.MaxOutputTokens > 0 || len(gc.StopSequences) > 0 {
		out.GenerationConfig = &gc
	}
	return out, nil
}

func (a *Adapter) TransformResponse(raw []byte, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	model := ""
	if req != nil {
		model = req.Model
	}
	out := &schema.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
	}
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		var text string
		for _, p := range c.Content.Parts {
			text += p.Text
		}
		out.Choices = []schema.Choice{{
			Index:        0,
			Message:      &schema.ChatMessage{Role: "assistant", Content: schema.StrPtr(text)},
			FinishReason: mapFinishReason(c.FinishReason),
		}}
	}
	if resp.UsageMetadata != nil {
		out.Usage = &schema.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// TransformStreamChunk handles Gemini's SSE frames, which reuse the
// response shape. Frames without candidate text or a finish reason yield nil.
func (a *Adapter) TransformStreamChunk(payload string, req *schema.ChatRequest) *schema.ChatResponse {
	if payload == "[DONE]" {
		return nil
	}
	var chunk response
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil
	}
	if len(chunk.Candidates) == 0 {
		return nil
	}
	c := chunk.Candidates[0]
	var text string
	for _, p := range c.Content.Parts {
		text += p.Text
	}
	if text == "" && c.FinishReason == "" {
		return nil
	}
	model := ""
	if req != nil {
		model = req.Model
	}
	uc := schema.Choice{Delta: &schema.ChatMessage{Content: schema.StrPtr(text)}}
	if c.FinishReason != "" {
		uc.FinishReason = mapFinishReason(c.FinishReason)
	}
	return &schema.ChatResponse{
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []schema.Choice{uc},
	}
}

func mapFinishReason(reason string) *string {
	switch reason {
	case "MAX_TOKENS":
		return schema.StrPtr(schema.FinishLength)
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return schema.StrPtr(schema.FinishContentFilter)
	default:
		// STOP and anything unrecognized
		return schema.StrPtr(schema.FinishStop)
	}
}

// EndpointURL embeds the native model id in the path, so the chat URL needs
// the original request's model resolved first. Unrecognized identifiers are
// used verbatim, tolerating freshly discovered models.
func (a *Adapter) EndpointURL(kind provider.EndpointKind, opts *provider.EndpointOptions) string {
	base := strings.TrimRight(a.Config().BaseURL, "/")
	if kind == provider.EndpointModels {
		return fmt.Sprintf("%s/models", base)
	}
	model := ""
	stream := false
	if opts != nil {
		model = a.ResolveNativeID(opts.Model)
		stream = opts.Stream
	}
	if stream {
		return fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", base, model)
	}
	return fmt.Sprintf("%s/models/%s:generateContent", base, model)
}

func (a *Adapter) AuthHeaders(apiKey string) map[string]string {
	return map[string]string{"x-goog-api-key": apiKey}
}

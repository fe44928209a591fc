package openrouter

import (
	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/provider/openai"
)

func init() {
	provider.RegisterType("openrouter", NewAdapter)
}

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Adapter wraps the OpenAI adapter: OpenRouter is wire-compatible but takes
// optional attribution headers alongside the bearer token.
type Adapter struct {
	provider.Adapter
}

func NewAdapter(cfg provider.Config) (provider.Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	inner, err := openai.NewAdapter(cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{Adapter: inner}, nil
}

func DefaultModels() []provider.ModelConfig {
	caps := []provider.Capability{provider.CapChat, provider.CapTools}
	return []provider.ModelConfig{
		{ID: "anthropic/claude-3.5-sonnet", ContextWindow: 200000, MaxOutputTokens: 8192, InputPricePerM: 3, OutputPricePerM: 15, Capabilities: caps, Enabled: true},
		{ID: "openai/gpt-4o", ContextWindow: 128000, MaxOutputTokens: 16384, InputPricePerM: 2.5, OutputPricePerM: 10, Capabilities: caps, Enabled: true},
		{ID: "meta-llama/llama-3.1-70b-instruct", ContextWindow: 131072, MaxOutputTokens: 4096, InputPricePerM: 0.3, OutputPricePerM: 0.4, Capabilities: []provider.Capability{provider.CapChat}, Enabled: true},
		{ID: "mistralai/mistral-large", ContextWindow: 128000, MaxOutputTokens: 4096, InputPricePerM: 2, OutputPricePerM: 6, Capabilities: caps, Enabled: true},
	}
}

// AuthHeaders adds OpenRouter's optional app attribution headers when
// configured under extra.referer / extra.title.
func (a *Adapter) AuthHeaders(apiKey string) map[string]string {
	headers := a.Adapter.AuthHeaders(apiKey)
	extra := a.Config().Extra
	if v, ok := extra["referer"]; ok && v != "" {
		headers["HTTP-Referer"] = v
	}
	if v, ok := extra["title"]; ok && v != "" {
		headers["X-Title"] = v
	}
	return headers
}

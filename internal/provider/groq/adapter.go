package groq

import (
	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/provider/openai"
)

func init() {
	provider.RegisterType("groq", NewAdapter)
}

const defaultBaseURL = "https://api.groq.com/openai/v1"

// NewAdapter builds a Groq adapter. Groq speaks the OpenAI wire format, so
// the adapter is the OpenAI one pointed at Groq's endpoint with Groq's
// model catalog.
func NewAdapter(cfg provider.Config) (provider.Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	return openai.NewAdapter(cfg)
}

func DefaultModels() []provider.ModelConfig {
	caps := []provider.Capability{provider.CapChat, provider.CapTools, provider.CapJSONMode}
	return []provider.ModelConfig{
		{ID: "llama-3.3-70b-versatile", ContextWindow: 128000, MaxOutputTokens: 32768, InputPricePerM: 0.59, OutputPricePerM: 0.79, Capabilities: caps, Enabled: true},
		{ID: "llama-3.1-8b-instant", ContextWindow: 128000, MaxOutputTokens: 8192, InputPricePerM: 0.05, OutputPricePerM: 0.08, Capabilities: caps, Enabled: true},
		{ID: "mixtral-8x7b-32768", ContextWindow: 32768, MaxOutputTokens: 4096, InputPricePerM: 0.24, OutputPricePerM: 0.24, Capabilities: []provider.Capability{provider.CapChat}, Enabled: true},
		{ID: "gemma2-9b-it", ContextWindow: 8192, MaxOutputTokens: 4096, InputPricePerM: 0.2, OutputPricePerM: 0.2, Capabilities: []provider.Capability{provider.CapChat}, Enabled: true},
	}
}

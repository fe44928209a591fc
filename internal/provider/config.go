package provider

// Capability tags what a model supports. Client-facing metadata only,
// never enforced at request time.
type Capability string

const (
	CapChat     Capability = "chat"
	CapVision   Capability = "vision"
	CapTools    Capability = "tools"
	CapJSONMode Capability = "json_mode"
)

// ModelConfig is one model's identity, limits and pricing.
type ModelConfig struct {
	// ID is the provider's native model id, unique within a provider.
	ID string `json:"id" yaml:"id" mapstructure:"id"`
	// Alias is an optional client-facing identifier, unique within a
	// provider when set.
	Alias           string       `json:"alias,omitempty" yaml:"alias,omitempty" mapstructure:"alias"`
	ContextWindow   int          `json:"context_window" yaml:"context_window" mapstructure:"context_window"`
	MaxOutputTokens int          `json:"max_output_tokens" yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	InputPricePerM  float64      `json:"input_price_per_m,omitempty" yaml:"input_price_per_m,omitempty" mapstructure:"input_price_per_m"`
	OutputPricePerM float64      `json:"output_price_per_m,omitempty" yaml:"output_price_per_m,omitempty" mapstructure:"output_price_per_m"`
	Capabilities    []Capability `json:"capabilities" yaml:"capabilities" mapstructure:"capabilities"`
	Enabled         bool         `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// Matches reports whether id equals the model's native id or alias.
func (m ModelConfig) Matches(id string) bool {
	return id == m.ID || (m.Alias != "" && id == m.Alias)
}

// PublicID is the identifier surfaced in the client catalog.
func (m ModelConfig) PublicID() string {
	if m.Alias != "" {
		return m.Alias
	}
	return m.ID
}

// Config is one provider's identity and policy. It is owned exclusively by
// its adapter; the registry only mutates the enabled flag and models list.
type Config struct {
	ID         string            `json:"id" yaml:"id" mapstructure:"id"`
	Name       string            `json:"name" yaml:"name" mapstructure:"name"`
	BaseURL    string            `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	AuthHeader string            `json:"auth_header,omitempty" yaml:"auth_header,omitempty" mapstructure:"auth_header"`
	AuthScheme string            `json:"auth_scheme,omitempty" yaml:"auth_scheme,omitempty" mapstructure:"auth_scheme"`
	Models     []ModelConfig     `json:"models" yaml:"models" mapstructure:"models"`
	Enabled    bool              `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

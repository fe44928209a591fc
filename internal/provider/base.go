package provider

import (
	"encoding/json"
	"sync"

	"github.com/modelrelay/relay/pkg/schema"
)

// Base carries the config-driven half of the Adapter contract. Concrete
// adapters embed it and implement the transform methods. All reads and
// mutations go through its lock so each registry operation stays atomic.
type Base struct {
	mu  sync.RWMutex
	cfg Config
}

func NewBase(cfg Config) Base {
	return Base{cfg: cfg}
}

func (b *Base) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.ID
}

// Config returns a snapshot; the models slice is copied so callers never
// observe a concurrent mutation mid-iteration.
func (b *Base) Config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cfg := b.cfg
	cfg.Models = make([]ModelConfig, len(b.cfg.Models))
	copy(cfg.Models, b.cfg.Models)
	return cfg
}

func (b *Base) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Enabled
}

func (b *Base) SetEnabled(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Enabled = v
}

func (b *Base) SupportsModel(id string) bool {
	_, ok := b.ModelConfig(id)
	return ok
}

func (b *Base) ModelConfig(id string) (ModelConfig, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, m := range b.cfg.Models {
		if m.Enabled && m.Matches(id) {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// ReplaceModels swaps the model list wholesale. No merging: callers wanting
// to preserve enable state must carry it over themselves first.
func (b *Base) ReplaceModels(models []ModelConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Models = make([]ModelConfig, len(models))
	copy(b.cfg.Models, models)
}

// AppendModels adds models whose native id is not already present and
// returns how many were added. Dedup is by native id only, not alias.
func (b *Base) AppendModels(models []ModelConfig) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	known := make(map[string]struct{}, len(b.cfg.Models))
	for _, m := range b.cfg.Models {
		known[m.ID] = struct{}{}
	}
	added := 0
	for _, m := range models {
		if _, dup := known[m.ID]; dup {
			continue
		}
		known[m.ID] = struct{}{}
		b.cfg.Models = append(b.cfg.Models, m)
		added++
	}
	return added
}

// SetModelEnabled toggles a model found by native id or alias. Disabled
// models are still addressable here, unlike in routing.
func (b *Base) SetModelEnabled(id string, v bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.cfg.Models {
		if b.cfg.Models[i].Matches(id) {
			b.cfg.Models[i].Enabled = v
			return true
		}
	}
	return false
}

// ResolveNativeID maps a client-supplied identifier to the provider's
// canonical id, falling back to the identifier verbatim when no enabled
// model matches. The fallback tolerates freshly discovered models.
func (b *Base) ResolveNativeID(id string) string {
	if m, ok := b.ModelConfig(id); ok {
		return m.ID
	}
	return id
}

// AuthHeaders builds the configured auth header. Adapters needing more than
// one header (Anthropic) override this.
func (b *Base) AuthHeaders(apiKey string) map[string]string {
	b.mu.RLock()
	header, scheme := b.cfg.AuthHeader, b.cfg.AuthScheme
	b.mu.RUnlock()
	if header == "" {
		header = "Authorization"
	}
	value := apiKey
	if scheme != "" {
		value = scheme + " " + apiKey
	}
	return map[string]string{header: value}
}

// nativeError mirrors the OpenAI error envelope most providers emit.
type nativeError struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// NormalizeError maps a native error body into the unified error shape.
// Bodies already carrying {error:{message,...}} pass their fields through
// with defaults; anything else becomes the message of an unknown_error.
func (b *Base) NormalizeError(raw []byte) *schema.Error {
	var ne nativeError
	if err := json.Unmarshal(raw, &ne); err == nil && ne.Error.Message != "" {
		errType := ne.Error.Type
		if errType == "" {
			errType = schema.ErrTypeAPI
		}
		return &schema.Error{Message: ne.Error.Message, Type: errType, Code: ne.Error.Code}
	}
	return &schema.Error{Message: string(raw), Type: schema.ErrTypeUnknown}
}

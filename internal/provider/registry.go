package provider

import (
	"errors"
	"sync"
)

// ErrNotRegistered reports a lookup for a provider id the registry has
// never seen.
var ErrNotRegistered = errors.New("provider not registered")

// ModelEntry pairs a model with its owning provider for catalog listings.
type ModelEntry struct {
	Model    ModelConfig
	Provider string
}

// Registry is the exclusive owner of the adapter collection, keyed by
// provider id. Registration order is preserved and breaks routing ties.
// Each operation is atomic; there is no cross-operation transaction.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register inserts an adapter, replacing any previous adapter with the same
// provider id in place (the original registration position is kept).
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := a.ID()
	if _, exists := r.adapters[id]; !exists {
		r.order = append(r.order, id)
	}
	r.adapters[id] = a
}

// Get looks up an adapter by provider id, ignoring enabled state.
// Management surfaces need to see disabled providers too.
func (r *Registry) Get(id string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

func (r *Registry) SetProviderEnabled(id string, v bool) bool {
	a, ok := r.Get(id)
	if !ok {
		return false
	}
	a.SetEnabled(v)
	return true
}

// UpdateModels replaces a provider's model list wholesale.
func (r *Registry) UpdateModels(id string, models []ModelConfig) bool {
	a, ok := r.Get(id)
	if !ok {
		return false
	}
	a.ReplaceModels(models)
	return true
}

// AddModels appends models not already present, deduped by native id.
func (r *Registry) AddModels(id string, models []ModelConfig) bool {
	a, ok := r.Get(id)
	if !ok {
		return false
	}
	a.AppendModels(models)
	return true
}

func (r *Registry) SetModelEnabled(id, modelID string, v bool) bool {
	a, ok := r.Get(id)
	if !ok {
		return false
	}
	return a.SetModelEnabled(modelID, v)
}

// ForModel returns the first enabled adapter, in registration order, that
// supports the model id or alias. When the same id exists in more than one
// enabled provider, first-registered wins.
func (r *Registry) ForModel(modelID string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		a := r.adapters[id]
		if a.Enabled() && a.SupportsModel(modelID) {
			return a, true
		}
	}
	return nil, false
}

// List returns configs of enabled providers in registration order.
func (r *Registry) List() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Config
	for _, id := range r.order {
		if a := r.adapters[id]; a.Enabled() {
			out = append(out, a.Config())
		}
	}
	return out
}

// ListAll returns every provider's config regardless of enabled state.
func (r *Registry) ListAll() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id].Config())
	}
	return out
}

// ListModels is the cross product of enabled providers and their enabled
// models, in provider-registration then model-list order. This backs the
// client-facing catalog.
func (r *Registry) ListModels() []ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ModelEntry
	for _, id := range r.order {
		a := r.adapters[id]
		if !a.Enabled() {
			continue
		}
		cfg := a.Config()
		for _, m := range cfg.Models {
			if m.Enabled {
				out = append(out, ModelEntry{Model: m, Provider: cfg.ID})
			}
		}
	}
	return out
}

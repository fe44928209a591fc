package provider

import (
	"fmt"
	"sync"
)

// Constructor builds an adapter from a provider config.
type Constructor func(cfg Config) (Adapter, error)

var (
	factoryMu    sync.RWMutex
	constructors = make(map[string]Constructor)
)

// RegisterType makes a constructor available under a provider type name.
// Adapter packages call this from init(); main imports them blank.
func RegisterType(providerType string, ctor Constructor) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	constructors[providerType] = ctor
}

// New instantiates an adapter for the given type name.
func New(providerType string, cfg Config) (Adapter, error) {
	factoryMu.RLock()
	ctor, ok := constructors[providerType]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q", providerType)
	}
	return ctor(cfg)
}

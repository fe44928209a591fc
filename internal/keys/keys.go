package keys

import (
	"context"
	"os"
	"strings"
)

// Provider resolves an upstream credential for a provider id. An empty
// string with a nil error means "no credential configured"; callers decide
// whether that is fatal. Lookups may suspend (remote or encrypted stores).
type Provider interface {
	GetAPIKey(ctx context.Context, providerID string) (string, error)
}

// EnvKeyName derives the conventional environment variable for a provider:
// the id uppercased with every non-alphanumeric rune replaced by underscore,
// suffixed with _API_KEY.
func EnvKeyName(providerID string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(providerID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String() + "_API_KEY"
}

// Env resolves credentials from the process environment.
type Env struct {
	// Lookup defaults to os.LookupEnv; injectable for tests.
	Lookup func(string) (string, bool)
}

func (e *Env) GetAPIKey(_ context.Context, providerID string) (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvKeyName(providerID)); ok {
		return v, nil
	}
	return "", nil
}

// Static serves credentials from a fixed map, typically config-sourced.
type Static struct {
	Keys map[string]string
}

func (s *Static) GetAPIKey(_ context.Context, providerID string) (string, error) {
	return s.Keys[providerID], nil
}

// Chain consults providers in order and returns the first non-empty key.
// Errors stop the chain: a broken store should not silently fall through.
type Chain []Provider

func (c Chain) GetAPIKey(ctx context.Context, providerID string) (string, error) {
	for _, p := range c {
		key, err := p.GetAPIKey(ctx, providerID)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	return "", nil
}

package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/modelrelay/relay/internal/httpclient"
	"github.com/modelrelay/relay/internal/keys"
	"github.com/modelrelay/relay/internal/provider"
)

// DiscoveredModel is one entry from a provider's native model listing.
type DiscoveredModel struct {
	ID            string `json:"id" yaml:"id"`
	OwnedBy       string `json:"owned_by,omitempty" yaml:"owned_by,omitempty"`
	ContextWindow int    `json:"context_window,omitempty" yaml:"context_window,omitempty"`
}

// Conservative defaults for models the catalog knows nothing about.
const (
	defaultContextWindow   = 8192
	defaultMaxOutputTokens = 4096
)

// ToModelConfig promotes a discovered model into a routable config. Pricing
// stays zero until an operator fills it in.
func (d DiscoveredModel) ToModelConfig() provider.ModelConfig {
	ctxWindow := d.ContextWindow
	if ctxWindow <= 0 {
		ctxWindow = defaultContextWindow
	}
	return provider.ModelConfig{
		ID:              d.ID,
		ContextWindow:   ctxWindow,
		MaxOutputTokens: defaultMaxOutputTokens,
		Capabilities:    []provider.Capability{provider.CapChat},
		Enabled:         true,
	}
}

// Source lists the models a provider currently serves.
type Source interface {
	ListModels(ctx context.Context, adapter provider.Adapter) ([]DiscoveredModel, error)
}

// HTTPSource queries the adapter's native models endpoint, expecting the
// common {"data": [{"id": ...}]} shape.
type HTTPSource struct {
	Client httpclient.HTTPClient
	Keys   keys.Provider
}

type modelListBody struct {
	Data []DiscoveredModel `json:"data"`
	// Google nests its listing differently.
	Models []struct {
		Name            string `json:"name"`
		InputTokenLimit int    `json:"inputTokenLimit"`
	} `json:"models"`
}

func (s *HTTPSource) ListModels(ctx context.Context, adapter provider.Adapter) ([]DiscoveredModel, error) {
	apiKey, err := s.Keys.GetAPIKey(ctx, adapter.ID())
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider: %s", adapter.ID())
	}

	opts := &provider.EndpointOptions{}
	url := adapter.EndpointURL(provider.EndpointModels, opts)
	if qa, ok := adapter.(provider.QueryAuthenticator); ok {
		url = qa.BuildAuthenticatedURL(provider.EndpointModels, apiKey, opts)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{}
	}
	resp, err := httpclient.Do(ctx, client, http.MethodGet, url, adapter.AuthHeaders(apiKey), nil, false)
	if err != nil {
		return nil, err
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var body modelListBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decoding model listing from %s: %w", adapter.ID(), err)
	}

	models := body.Data
	for _, m := range body.Models {
		models = append(models, DiscoveredModel{ID: trimModelsPrefix(m.Name), ContextWindow: m.InputTokenLimit})
	}
	return models, nil
}

func trimModelsPrefix(name string) string {
	const prefix = "models/"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

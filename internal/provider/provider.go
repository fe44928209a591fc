package provider

import (
	"github.com/modelrelay/relay/pkg/schema"
)

// EndpointKind selects which upstream endpoint URL to build.
type EndpointKind string

const (
	EndpointChat   EndpointKind = "chat"
	EndpointModels EndpointKind = "models"
)

// EndpointOptions carries per-request data some providers need to build a
// URL. Google embeds the resolved native model id in the path.
type EndpointOptions struct {
	Model  string
	Stream bool
}

// Adapter translates between the unified format and one provider's native
// wire format. Transform methods are pure: no network I/O, no suspension.
type Adapter interface {
	// ID returns the provider id used for routing and credential lookup.
	ID() string
	// Config returns a snapshot of the provider's current configuration.
	Config() Config
	Enabled() bool
	SetEnabled(v bool)

	// SupportsModel matches id against native ids and aliases of enabled
	// models only. A disabled model is invisible to routing.
	SupportsModel(id string) bool
	ModelConfig(id string) (ModelConfig, bool)

	ReplaceModels(models []ModelConfig)
	AppendModels(models []ModelConfig) int
	SetModelEnabled(id string, v bool) bool

	// TransformRequest maps a unified request into the provider's native
	// request value. The result is marshalled verbatim by the caller.
	TransformRequest(req *schema.ChatRequest) (interface{}, error)
	// TransformResponse maps a native response body into the unified shape.
	TransformResponse(raw []byte, req *schema.ChatRequest) (*schema.ChatResponse, error)
	// TransformStreamChunk maps one decoded SSE event payload into a
	// unified chunk. A nil result means "nothing to emit for this event"
	// and is never a terminal signal. The literal "[DONE]" sentinel and
	// unparseable payloads both yield nil.
	TransformStreamChunk(payload string, req *schema.ChatRequest) *schema.ChatResponse
	// NormalizeError converts a native error body into the unified error.
	// Total: never returns nil and never fails.
	NormalizeError(raw []byte) *schema.Error

	EndpointURL(kind EndpointKind, opts *EndpointOptions) string
	AuthHeaders(apiKey string) map[string]string
}

// QueryAuthenticator is implemented by adapters whose auth mode embeds the
// credential in the URL rather than a header. Callers must prefer
// BuildAuthenticatedURL over EndpointURL when this interface is present.
type QueryAuthenticator interface {
	BuildAuthenticatedURL(kind EndpointKind, apiKey string, opts *EndpointOptions) string
}

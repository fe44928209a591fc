package custom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/pkg/schema"
)

// AuthMode selects how the credential reaches the upstream.
type AuthMode string

const (
	AuthHeader AuthMode = "header"
	AuthQuery  AuthMode = "query"
)

type AuthConfig struct {
	Mode AuthMode `json:"mode" yaml:"mode" mapstructure:"mode"`
	// Header-mode fields.
	Header string `json:"header,omitempty" yaml:"header,omitempty" mapstructure:"header"`
	Scheme string `json:"scheme,omitempty" yaml:"scheme,omitempty" mapstructure:"scheme"`
	// Query-mode field: the URL parameter carrying the key.
	QueryParam string `json:"query_param,omitempty" yaml:"query_param,omitempty" mapstructure:"query_param"`
	// Static headers sent on every call regardless of mode.
	ExtraHeaders map[string]string `json:"extra_headers,omitempty" yaml:"extra_headers,omitempty" mapstructure:"extra_headers"`
}

// Definition declares a provider entirely through configuration: endpoint,
// auth, models and a template per direction instead of adapter code.
type Definition struct {
	ID         string                 `json:"id" yaml:"id" mapstructure:"id"`
	Name       string                 `json:"name" yaml:"name" mapstructure:"name"`
	BaseURL    string                 `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	ChatPath   string                 `json:"chat_path,omitempty" yaml:"chat_path,omitempty" mapstructure:"chat_path"`
	ModelsPath string                 `json:"models_path,omitempty" yaml:"models_path,omitempty" mapstructure:"models_path"`
	Auth       AuthConfig             `json:"auth" yaml:"auth" mapstructure:"auth"`
	Models     []provider.ModelConfig `json:"models" yaml:"models" mapstructure:"models"`
	// RequestTemplate renders the unified request into the native request
	// body. The unified request is exposed with its wire field names.
	RequestTemplate string `json:"request_template" yaml:"request_template" mapstructure:"request_template"`
	// ResponseTemplate renders {"output": <native payload>} into the
	// unified response (or chunk) body.
	ResponseTemplate string `json:"response_template" yaml:"response_template" mapstructure:"response_template"`
	Enabled         bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// Adapter drives the provider contract through templates compiled once at
// construction and rendered per call.
type Adapter struct {
	provider.Base
	auth       AuthConfig
	chatPath   string
	modelsPath string
	reqTpl     *template.Template
	respTpl    *template.Template
}

var tplFuncs = template.FuncMap{
	"json": func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// New compiles the definition's templates and returns a reusable adapter.
// Template syntax errors surface here, at registration, not per request.
func New(def Definition) (*Adapter, error) {
	if def.ID == "" {
		return nil, fmt.Errorf("custom provider: id is required")
	}
	if def.BaseURL == "" {
		return nil, fmt.Errorf("custom provider %s: base_url is required", def.ID)
	}
	reqTpl, err := template.New(def.ID + ":request").Funcs(tplFuncs).Option("missingkey=zero").Parse(def.RequestTemplate)
	if err != nil {
		return nil, fmt.Errorf("custom provider %s: compile request template: %w", def.ID, err)
	}
	respTpl, err := template.New(def.ID + ":response").Funcs(tplFuncs).Option("missingkey=zero").Parse(def.ResponseTemplate)
	if err != nil {
		return nil, fmt.Errorf("custom provider %s: compile response template: %w", def.ID, err)
	}
	if def.ChatPath == "" {
		def.ChatPath = "/chat/completions"
	}
	if def.ModelsPath == "" {
		def.ModelsPath = "/models"
	}
	if def.Auth.Mode == "" {
		def.Auth.Mode = AuthHeader
	}
	if def.Auth.Mode == AuthHeader && def.Auth.Header == "" {
		def.Auth.Header = "Authorization"
		if def.Auth.Scheme == "" {
			def.Auth.Scheme = "Bearer"
		}
	}
	cfg := provider.Config{
		ID:      def.ID,
		Name:    def.Name,
		BaseURL: def.BaseURL,
		Models:  def.Models,
		Enabled: def.Enabled,
	}
	return &Adapter{
		Base:       provider.NewBase(cfg),
		auth:       def.Auth,
		chatPath:   def.ChatPath,
		modelsPath: def.ModelsPath,
		reqTpl:     reqTpl,
		respTpl:    respTpl,
	}, nil
}

// render executes a compiled template and requires the output to be JSON.
func render(tpl *template.Template, input interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, input); err != nil {
		return nil, fmt.Errorf("render %s: %w", tpl.Name(), err)
	}
	out := buf.Bytes()
	if !json.Valid(out) {
		return nil, fmt.Errorf("render %s: output is not valid JSON", tpl.Name())
	}
	return json.RawMessage(out), nil
}

func (a *Adapter) TransformRequest(req *schema.ChatRequest) (interface{}, error) {
	// Round-trip so the template sees wire field names ({{.model}}, ...).
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var input map[string]interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	return render(a.reqTpl, input)
}

// TransformResponse is fatal on render or parse failure: a broken template
// must not be silently swallowed on the non-streaming path.
func (a *Adapter) TransformResponse(raw []byte, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	rendered, err := render(a.respTpl, templateInput(raw))
	if err != nil {
		return nil, err
	}
	var out schema.ChatResponse
	if err := json.Unmarshal(rendered, &out); err != nil {
		return nil, fmt.Errorf("parse rendered response: %w", err)
	}
	if out.ID == "" {
		out.ID = "chatcmpl-" + uuid.NewString()
	}
	if out.Object == "" {
		out.Object = "chat.completion"
	}
	if out.Created == 0 {
		out.Created = time.Now().Unix()
	}
	if out.Model == "" && req != nil {
		out.Model = req.Model
	}
	return &out, nil
}

// TransformStreamChunk returns nil on any render or parse failure, per the
// streaming contract: one bad event must not kill the stream.
func (a *Adapter) TransformStreamChunk(payload string, req *schema.ChatRequest) *schema.ChatResponse {
	if payload == "[DONE]" {
		return nil
	}
	rendered, err := render(a.respTpl, templateInput([]byte(payload)))
	if err != nil {
		return nil
	}
	var out schema.ChatResponse
	if err := json.Unmarshal(rendered, &out); err != nil {
		return nil
	}
	if len(out.Choices) == 0 {
		return nil
	}
	if out.Object == "" {
		out.Object = "chat.completion.chunk"
	}
	if out.Created == 0 {
		out.Created = time.Now().Unix()
	}
	return &out
}

// templateInput wraps the native payload as {"output": ...}, decoding it
// when it is JSON and passing it through as a string otherwise.
func templateInput(raw []byte) map[string]interface{} {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}
	return map[string]interface{}{"output": decoded}
}

func (a *Adapter) EndpointURL(kind provider.EndpointKind, _ *provider.EndpointOptions) string {
	base := strings.TrimRight(a.Config().BaseURL, "/")
	if kind == provider.EndpointModels {
		return base + a.modelsPath
	}
	return base + a.chatPath
}

func (a *Adapter) AuthHeaders(apiKey string) map[string]string {
	headers := make(map[string]string, len(a.auth.ExtraHeaders)+1)
	for k, v := range a.auth.ExtraHeaders {
		headers[k] = v
	}
	if a.auth.Mode == AuthHeader && apiKey != "" {
		value := apiKey
		if a.auth.Scheme != "" {
			value = a.auth.Scheme + " " + apiKey
		}
		headers[a.auth.Header] = value
	}
	return headers
}

// BuildAuthenticatedURL embeds the key as a query parameter. Callers must
// use this instead of EndpointURL when query auth is configured.
func (a *Adapter) BuildAuthenticatedURL(kind provider.EndpointKind, apiKey string, opts *provider.EndpointOptions) string {
	u := a.EndpointURL(kind, opts)
	if a.auth.Mode != AuthQuery || a.auth.QueryParam == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + a.auth.QueryParam + "=" + apiKey
}

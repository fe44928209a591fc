package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modelrelay/relay/internal/httpclient"
	"github.com/modelrelay/relay/internal/keys"
	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/usage"
	"github.com/modelrelay/relay/pkg/schema"
)

// Statuses forwarded to clients exactly as the upstream returned them.
// Anything else collapses to 400 (client-shaped) or 502 (upstream-shaped).
var passthroughStatus = map[int]bool{
	400: true, 401: true, 403: true, 404: true,
	408: true, 409: true, 422: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
}

func mapUpstreamStatus(code int) int {
	if passthroughStatus[code] {
		return code
	}
	if code >= 400 && code < 500 {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// Service routes unified chat requests to the adapter owning the requested
// model, relays the upstream exchange, and accounts usage exactly once per
// request on both success and failure paths.
type Service struct {
	logger   *zap.Logger
	registry *provider.Registry
	keys     keys.Provider
	usage    usage.Recorder
	client   httpclient.HTTPClient
	timeout  time.Duration
}

func NewService(logger *zap.Logger, registry *provider.Registry, kp keys.Provider, rec usage.Recorder, client httpclient.HTTPClient, timeout time.Duration) *Service {
	if client == nil {
		client = &http.Client{}
	}
	return &Service{
		logger:   logger,
		registry: registry,
		keys:     kp,
		usage:    rec,
		client:   client,
		timeout:  timeout,
	}
}

// Registry exposes the routing table for the catalog and admin surfaces.
func (s *Service) Registry() *provider.Registry { return s.registry }

func (s *Service) record(adapter provider.Adapter, req *schema.ChatRequest, in, out int, estimated bool, start time.Time, streamed, success bool, errMsg string) {
	s.usage.Record(&usage.Record{
		ID:           uuid.NewString(),
		ProviderID:   adapter.ID(),
		Model:        req.Model,
		InputTokens:  in,
		OutputTokens: out,
		Estimated:    estimated,
		LatencyMs:    time.Since(start).Milliseconds(),
		Streamed:     streamed,
		Success:      success,
		ErrorMessage: errMsg,
		CreatedAt:    time.Now(),
	})
}

// dispatch resolves routing, credentials, and the upstream call shared by
// both the blocking and streaming paths. On a non-nil *schema.Error nothing
// has been written to the client; failures after the adapter is resolved
// are accounted here, unknown-model failures are not.
func (s *Service) dispatch(ctx context.Context, req *schema.ChatRequest, streaming bool, start time.Time) (*http.Response, provider.Adapter, *schema.Error) {
	adapter, ok := s.registry.ForModel(req.Model)
	if !ok {
		return nil, nil, schema.NewErrorWithCode(http.StatusNotFound, schema.ErrTypeInvalidRequest,
			schema.CodeModelNotFound, fmt.Sprintf("Model not found: %s", req.Model))
	}

	fail := func(serr *schema.Error) (*http.Response, provider.Adapter, *schema.Error) {
		s.record(adapter, req, estimateInputTokens(req.Messages), 0, true, start, streaming, false, serr.Message)
		return nil, adapter, serr
	}

	apiKey, err := s.keys.GetAPIKey(ctx, adapter.ID())
	if err != nil {
		s.logger.Error("Credential lookup failed", zap.String("provider", adapter.ID()), zap.Error(err))
		return fail(schema.NewError(http.StatusInternalServerError, schema.ErrTypeInternal,
			"credential lookup failed"))
	}
	if apiKey == "" {
		return fail(schema.NewErrorWithCode(http.StatusUnauthorized, schema.ErrTypeAuthentication,
			schema.CodeMissingAPIKey, fmt.Sprintf("No API key configured for provider: %s", adapter.ID())))
	}

	payload, err := adapter.TransformRequest(req)
	if err != nil {
		s.logger.Error("Request transform failed", zap.String("provider", adapter.ID()), zap.Error(err))
		return fail(schema.NewError(http.StatusInternalServerError, schema.ErrTypeInternal,
			"request transformation failed"))
	}

	body, err := marshalPayload(payload)
	if err != nil {
		return fail(schema.NewError(http.StatusInternalServerError, schema.ErrTypeInternal,
			"request serialization failed"))
	}

	opts := &provider.EndpointOptions{Model: req.Model, Stream: streaming}
	url := adapter.EndpointURL(provider.EndpointChat, opts)
	if qa, ok := adapter.(provider.QueryAuthenticator); ok {
		url = qa.BuildAuthenticatedURL(provider.EndpointChat, apiKey, opts)
	}

	resp, err := httpclient.Do(ctx, s.client, http.MethodPost, url, adapter.AuthHeaders(apiKey), body, streaming)
	if err != nil {
		return fail(schema.NewError(http.StatusBadGateway, schema.ErrTypeAPI,
			fmt.Sprintf("upstream request failed: %v", err)))
	}

	if err := httpclient.CheckStatus(resp); err != nil {
		var ue *httpclient.UpstreamError
		if errors.As(err, &ue) {
			normalized := adapter.NormalizeError(ue.Body)
			normalized.Status = mapUpstreamStatus(ue.StatusCode)
			return fail(normalized)
		}
		return fail(schema.NewError(http.StatusBadGateway, schema.ErrTypeAPI, err.Error()))
	}

	return resp, adapter, nil
}

// ChatCompletion executes a blocking chat request end to end.
func (s *Service) ChatCompletion(ctx context.Context, req *schema.ChatRequest) (*schema.ChatResponse, *schema.Error) {
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	httpResp, adapter, serr := s.dispatch(ctx, req, false, start)
	if serr != nil {
		return nil, serr
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		s.record(adapter, req, estimateInputTokens(req.Messages), 0, true, start, false, false, err.Error())
		return nil, schema.NewError(http.StatusBadGateway, schema.ErrTypeAPI,
			fmt.Sprintf("reading upstream response: %v", err))
	}

	resp, err := adapter.TransformResponse(raw, req)
	if err != nil {
		s.logger.Error("Response transform failed",
			zap.String("provider", adapter.ID()), zap.String("model", req.Model), zap.Error(err))
		s.record(adapter, req, estimateInputTokens(req.Messages), 0, true, start, false, false, err.Error())
		return nil, schema.NewError(http.StatusBadGateway, schema.ErrTypeAPI,
			"upstream returned an unparseable response")
	}

	in, out, estimated := resolveUsage(resp, req)
	s.record(adapter, req, in, out, estimated, start, false, true, "")

	return resp, nil
}

// resolveUsage prefers upstream-reported token counts, falling back to
// local estimates when the provider omits them.
func resolveUsage(resp *schema.ChatResponse, req *schema.ChatRequest) (in, out int, estimated bool) {
	if resp.Usage != nil {
		return resp.Usage.PromptTokens, resp.Usage.CompletionTokens, false
	}
	return estimateInputTokens(req.Messages), estimateOutputTokens(resp), true
}

func marshalPayload(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/pkg/schema"
)

const doneSentinel = "[DONE]"

// StreamSession is an upstream SSE stream that has been opened but not yet
// relayed. Splitting open from run lets the handler return a proper error
// status before any bytes are written to the client.
type StreamSession struct {
	svc     *Service
	adapter provider.Adapter
	req     *schema.ChatRequest
	body    io.ReadCloser
	start   time.Time
}

// OpenStream routes the request and establishes the upstream stream. All
// failures surface here, while the response is still unwritten.
func (s *Service) OpenStream(ctx context.Context, req *schema.ChatRequest) (*StreamSession, *schema.Error) {
	start := time.Now()

	httpResp, adapter, serr := s.dispatch(ctx, req, true, start)
	if serr != nil {
		return nil, serr
	}

	return &StreamSession{
		svc:     s,
		adapter: adapter,
		req:     req,
		body:    httpResp.Body,
		start:   start,
	}, nil
}

// Run relays the upstream stream to w, re-framing every event through the
// adapter. The terminal [DONE] sentinel passes through verbatim and is
// synthesized if the upstream never sent one. Usage is recorded exactly
// once, after the stream ends, however it ends.
func (sess *StreamSession) Run(w io.Writer, flush func()) {
	defer sess.body.Close()

	var (
		outTokens     int
		upstreamUsage *schema.Usage
		sawDone       bool
		clientGone    bool
	)

	writeEvent := func(payload []byte) bool {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			clientGone = true
			return false
		}
		if flush != nil {
			flush()
		}
		return true
	}

	scanner := NewBlockScanner(sess.body)
	for scanner.Next() {
		payload := scanner.Payload()
		if payload == doneSentinel {
			sawDone = true
			writeEvent([]byte(doneSentinel))
			break
		}

		chunk := sess.adapter.TransformStreamChunk(payload, sess.req)
		if chunk == nil {
			continue
		}
		if chunk.Usage != nil {
			upstreamUsage = chunk.Usage
		}
		if text := chunk.DeltaText(); text != "" {
			outTokens += EstimateTokens(text)
		}

		buf, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		if !writeEvent(buf) {
			break
		}
	}

	success := true
	errMsg := ""
	if err := scanner.Err(); err != nil && !clientGone {
		streamErr := schema.NewError(http.StatusBadGateway, schema.ErrTypeAPI,
			fmt.Sprintf("stream interrupted: %v", err))
		if buf, merr := json.Marshal(schema.ErrorResponse{Error: streamErr}); merr == nil {
			writeEvent(buf)
		}
		success = false
		errMsg = err.Error()
	}

	if !sawDone && !clientGone {
		writeEvent([]byte(doneSentinel))
	}

	in := estimateInputTokens(sess.req.Messages)
	out := outTokens
	estimated := true
	if upstreamUsage != nil {
		// some providers report only output tokens on the final stream
		// event; keep the input estimate in that case
		if upstreamUsage.PromptTokens > 0 {
			in = upstreamUsage.PromptTokens
			estimated = false
		}
		if upstreamUsage.CompletionTokens > 0 {
			out = upstreamUsage.CompletionTokens
		}
	}
	sess.svc.record(sess.adapter, sess.req, in, out, estimated, sess.start, true, success, errMsg)
}

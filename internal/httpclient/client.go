package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// HTTPClient defines the interface for an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Do builds and sends a JSON request, returning the raw response so callers
// can stream the body. Headers are applied after Content-Type/Accept so a
// caller can override either.
func Do(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body []byte, streaming bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return client.Do(req)
}

// CheckStatus consumes and closes the body on a non-2xx response, returning
// an UpstreamError carrying it. On 2xx the body is left open for the caller.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return &UpstreamError{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         resp.Request.URL.String(),
	}
}

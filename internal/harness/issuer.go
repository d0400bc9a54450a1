package harness

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Response is the outcome of one issued request.
type Response struct {
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// OK reports whether the response counts as a success for load-testing
// purposes: any 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RequestIssuer issues GET requests against a single service instance.
// It holds one persistent client with a fixed per-request timeout and is
// passed by reference across goroutines; plain GETs without cookies make
// sharing the client safe enough, which we accept for this harness.
type RequestIssuer struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Issue performs one GET to <base>/<path>. A transport-level failure
// (timeouts included) yields nil so the caller can record a failed sample
// and keep going; per-request failures are data here, not errors.
func (ri *RequestIssuer) Issue(path string) *Response {
	url := ri.baseURL + "/" + strings.TrimPrefix(path, "/")

	start := time.Now()
	resp, err := ri.client.Get(url)
	elapsed := time.Since(start)
	if err != nil {
		ri.logger.Debug("request failed", slog.String("url", url), slog.Any("error", err))
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ri.logger.Debug("reading response body failed", slog.String("url", url), slog.Any("error", err))
		return nil
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Elapsed:    elapsed,
	}
}

// BaseURL returns the service root this issuer is bound to.
func (ri *RequestIssuer) BaseURL() string {
	return ri.baseURL
}

// Package llmclient is the JSON-over-HTTP transport shared by provider
// adapters. It builds requests, maps upstream failures to core errors,
// retries unary calls with backoff and reports every exchange to Hooks.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"ragchat/internal/core"
	"ragchat/internal/httpclient"
)

// Backoff controls retries of unary calls. Streams are never retried because
// the caller may already have forwarded part of the output.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return min(time.Duration(d), b.Max)
}

// Config describes one upstream endpoint.
type Config struct {
	ProviderName string
	BaseURL      string
	MaxRetries   int
	Backoff      Backoff
	Hooks        Hooks
}

// DefaultConfig returns a config without retries.
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName: providerName,
		BaseURL:      baseURL,
		Backoff:      Backoff{Initial: time.Second, Max: 30 * time.Second, Factor: 2},
	}
}

// HeaderSetter decorates every outgoing request, typically with credentials.
type HeaderSetter func(req *http.Request)

// Request is one call relative to Config.BaseURL. Body is JSON-encoded when
// non-nil.
type Request struct {
	Method   string
	Endpoint string
	Body     any
}

// Client sends Requests for a single provider instance.
type Client struct {
	cfg      Config
	decorate HeaderSetter
	stream   *http.Client
	unary    *http.Client
}

// New returns a client backed by the shared streaming and listing pools.
func New(cfg Config, decorate HeaderSetter) *Client {
	return &Client{
		cfg:      cfg,
		decorate: decorate,
		stream:   httpclient.Streaming(),
		unary:    httpclient.Listing(),
	}
}

// NewWithHTTPClient returns a client that sends both streamed and unary
// calls through hc. A nil hc behaves like New.
func NewWithHTTPClient(hc *http.Client, cfg Config, decorate HeaderSetter) *Client {
	c := New(cfg, decorate)
	if hc != nil {
		c.stream, c.unary = hc, hc
	}
	return c
}

// BaseURL returns the endpoint requests are resolved against.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Fetch performs a unary call and returns the body of a 200 response.
// 429 and 502-504 responses and transport failures are retried up to
// MaxRetries times.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= max(c.cfg.MaxRetries, 0); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.cfg.Backoff.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		status, body, err := c.fetchOnce(ctx, req)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, err
		case err != nil:
			lastErr = err
		case status == http.StatusOK:
			return body, nil
		case retryable(status):
			lastErr = core.ParseProviderError(c.cfg.ProviderName, status, body, nil)
		default:
			return nil, core.ParseProviderError(c.cfg.ProviderName, status, body, nil)
		}
	}
	return nil, lastErr
}

// Open starts a streamed call and hands back the response body once a 200
// arrives. The caller must close it. Non-200 responses are read in full and
// returned as a parsed provider error.
func (c *Client) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	ex, err := c.begin(ctx, req, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.stream.Do(ex.httpReq)
	if err != nil {
		return nil, ex.finish(0, c.gatewayError("failed to send request", err))
	}
	if resp.StatusCode == http.StatusOK {
		ex.finish(resp.StatusCode, nil)
		return resp.Body, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		body = []byte("failed to read error response")
	}
	return nil, ex.finish(resp.StatusCode, core.ParseProviderError(c.cfg.ProviderName, resp.StatusCode, body, nil))
}

func (c *Client) fetchOnce(ctx context.Context, req Request) (int, []byte, error) {
	ex, err := c.begin(ctx, req, false)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.unary.Do(ex.httpReq)
	if err != nil {
		return 0, nil, ex.finish(0, c.gatewayError("failed to send request", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, ex.finish(resp.StatusCode, c.gatewayError("failed to read response", err))
	}
	ex.finish(resp.StatusCode, nil)
	return resp.StatusCode, body, nil
}

// exchange tracks one upstream round trip for the hooks.
type exchange struct {
	ctx     context.Context
	hooks   Hooks
	info    RequestInfo
	started time.Time
	httpReq *http.Request
}

func (e *exchange) finish(status int, err error) error {
	e.hooks.end(e.ctx, ResponseInfo{
		RequestInfo: e.info,
		StatusCode:  status,
		Duration:    time.Since(e.started),
		Err:         err,
	})
	return err
}

func (c *Client) begin(ctx context.Context, req Request, stream bool) (*exchange, error) {
	var payload io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		payload = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.cfg.BaseURL+req.Endpoint, payload)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request: "+err.Error(), err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.decorate != nil {
		c.decorate(httpReq)
	}

	info := RequestInfo{Provider: c.cfg.ProviderName, Method: req.Method, Endpoint: req.Endpoint, Stream: stream}
	hookCtx := c.cfg.Hooks.start(ctx, info)
	return &exchange{ctx: hookCtx, hooks: c.cfg.Hooks, info: info, started: time.Now(), httpReq: httpReq}, nil
}

func (c *Client) gatewayError(msg string, err error) error {
	return core.NewProviderError(c.cfg.ProviderName, http.StatusBadGateway, msg+": "+err.Error(), err)
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Package openaicompat implements the chat streaming and model listing
// protocol shared by OpenAI-compatible APIs.
package openaicompat

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"

	"github.com/tidwall/gjson"

	"ragchat/internal/core"
	"ragchat/internal/llmclient"
	"ragchat/internal/sse"
)

// HeaderFunc adds provider-specific headers to an outgoing request.
type HeaderFunc func(req *http.Request)

// Provider speaks the OpenAI chat completions protocol.
type Provider struct {
	name    string
	apiKey  string
	client  *llmclient.Client
	headers HeaderFunc
}

// New creates a provider. extra may be nil; when it is, the request ID is
// forwarded as X-Request-ID.
func New(cfg llmclient.Config, apiKey string, extra HeaderFunc) *Provider {
	p := &Provider{name: cfg.ProviderName, apiKey: apiKey, headers: extra}
	p.client = llmclient.New(cfg, p.setHeaders)
	return p
}

// NewWithHTTPClient creates a provider that sends requests through httpClient.
func NewWithHTTPClient(httpClient *http.Client, cfg llmclient.Config, apiKey string, extra HeaderFunc) *Provider {
	p := &Provider{name: cfg.ProviderName, apiKey: apiKey, headers: extra}
	p.client = llmclient.NewWithHTTPClient(httpClient, cfg, p.setHeaders)
	return p
}

// BaseURL returns the endpoint requests are sent to.
func (p *Provider) BaseURL() string {
	return p.client.BaseURL()
}

func (p *Provider) setHeaders(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	if p.headers != nil {
		p.headers(req)
		return
	}
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []core.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

// StreamChat posts msgs to /chat/completions and yields every non-empty
// content delta. The stream ends on [DONE], on EOF, or after one error chunk.
func (p *Provider) StreamChat(ctx context.Context, model string, msgs []core.Message) iter.Seq[core.StreamChunk] {
	return func(yield func(core.StreamChunk) bool) {
		body, err := p.client.Open(ctx, llmclient.Request{
			Method:   http.MethodPost,
			Endpoint: "/chat/completions",
			Body: chatRequest{
				Model:    model,
				Messages: msgs,
				Stream:   true,
			},
		})
		if err != nil {
			yield(core.StreamChunk{Err: err})
			return
		}
		defer func() {
			_ = body.Close()
		}()

		dec := sse.NewDecoder(body)
		for {
			payload, err := dec.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				yield(core.StreamChunk{Err: core.NewProviderError(p.name, http.StatusBadGateway, "stream interrupted: "+err.Error(), err)})
				return
			}
			if sse.IsDone(payload) {
				return
			}

			text, err := p.parseChunk(payload)
			if err != nil {
				yield(core.StreamChunk{Err: err})
				return
			}
			if text == "" {
				continue
			}
			if !yield(core.StreamChunk{Text: text}) {
				return
			}
		}
	}
}

func (p *Provider) parseChunk(payload []byte) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", core.NewProviderError(p.name, http.StatusBadGateway, "malformed stream chunk: "+string(payload), nil)
	}
	parsed := gjson.ParseBytes(payload)
	if msg := parsed.Get("error.message"); msg.Exists() {
		return "", core.NewProviderError(p.name, http.StatusBadGateway, msg.String(), nil)
	}
	return parsed.Get("choices.0.delta.content").String(), nil
}

// ListModels returns the ids reported by GET /models in upstream order.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	raw, err := p.client.Fetch(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/models",
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, core.NewProviderError(p.name, http.StatusBadGateway, "failed to parse models response", nil)
	}

	data := gjson.GetBytes(raw, "data").Array()
	ids := make([]string, 0, len(data))
	for _, m := range data {
		if id := m.Get("id").String(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

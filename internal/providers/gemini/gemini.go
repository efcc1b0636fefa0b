// Package gemini provides Google Gemini API integration for the chat gateway
// using the native generateContent API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"ragchat/internal/core"
	"ragchat/internal/llmclient"
	"ragchat/internal/providers"
	"ragchat/internal/sse"
)

// Registration provides factory registration for the Google provider.
var Registration = providers.Registration{
	Kind: core.KindGoogle,
	New:  New,
}

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	modelNamePrefix = "models/"
	generateContent = "generateContent"
	listPageSize    = 1000
	maxListingPages = 20
	roleGeminiUser  = "user"
	roleGeminiModel = "model"
)

// Provider implements core.Provider for Google Gemini
type Provider struct {
	client *llmclient.Client
	apiKey string
}

// New creates a new Gemini provider.
func New(id core.Identity, opts providers.ProviderOptions) (core.Provider, error) {
	p := &Provider{apiKey: id.APIKey}
	p.client = llmclient.New(opts.ClientConfig(string(core.KindGoogle), defaultBaseURL), p.setHeaders)
	return p, nil
}

// NewWithHTTPClient creates a provider that sends requests through httpClient.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, cfg llmclient.Config) *Provider {
	p := &Provider{apiKey: apiKey}
	p.client = llmclient.NewWithHTTPClient(httpClient, cfg, p.setHeaders)
	return p
}

func (p *Provider) setHeaders(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("x-goog-api-key", p.apiKey)
	}
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

// buildContents turns a chat into Gemini contents: every message except the
// last becomes history, with "user" kept and any other role sent as "model".
// The last message is always sent as the new user turn.
func buildContents(msgs []core.Message) []content {
	contents := make([]content, 0, len(msgs))
	for _, m := range msgs[:len(msgs)-1] {
		role := roleGeminiModel
		if m.Role == core.RoleUser {
			role = roleGeminiUser
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	last := msgs[len(msgs)-1]
	return append(contents, content{Role: roleGeminiUser, Parts: []part{{Text: last.Content}}})
}

// StreamChat streams a reply through streamGenerateContent. Each non-empty
// text part of the first candidate becomes one chunk.
func (p *Provider) StreamChat(ctx context.Context, model string, msgs []core.Message) iter.Seq[core.StreamChunk] {
	return func(yield func(core.StreamChunk) bool) {
		if len(msgs) == 0 {
			yield(core.StreamChunk{Err: core.NewInvalidRequestError("at least one message is required", nil)})
			return
		}

		body, err := p.client.Open(ctx, llmclient.Request{
			Method:   http.MethodPost,
			Endpoint: "/models/" + url.PathEscape(strings.TrimPrefix(model, modelNamePrefix)) + ":streamGenerateContent?alt=sse",
			Body:     generateRequest{Contents: buildContents(msgs)},
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
				yield(core.StreamChunk{Err: core.NewProviderError(string(core.KindGoogle), http.StatusBadGateway, "stream interrupted: "+err.Error(), err)})
				return
			}

			texts, err := parseChunk(payload)
			if err != nil {
				yield(core.StreamChunk{Err: err})
				return
			}
			for _, text := range texts {
				if !yield(core.StreamChunk{Text: text}) {
					return
				}
			}
		}
	}
}

func parseChunk(payload []byte) ([]string, error) {
	if !gjson.ValidBytes(payload) {
		return nil, core.NewProviderError(string(core.KindGoogle), http.StatusBadGateway, "malformed stream chunk: "+string(payload), nil)
	}
	parsed := gjson.ParseBytes(payload)
	if msg := parsed.Get("error.message"); msg.Exists() {
		return nil, core.NewProviderError(string(core.KindGoogle), http.StatusBadGateway, msg.String(), nil)
	}
	if reason := parsed.Get("promptFeedback.blockReason"); reason.Exists() {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("prompt blocked: %s", reason.String()), nil)
	}

	var texts []string
	for _, pt := range parsed.Get("candidates.0.content.parts").Array() {
		if text := pt.Get("text").String(); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

// ListModels returns the models supporting generateContent, without the
// "models/" prefix, in upstream order. All pages are followed.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	models := []string{}
	pageToken := ""
	for page := 0; page < maxListingPages; page++ {
		query := url.Values{}
		query.Set("pageSize", fmt.Sprint(listPageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		raw, err := p.client.Fetch(ctx, llmclient.Request{
			Method:   http.MethodGet,
			Endpoint: "/models?" + query.Encode(),
		})
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(raw) {
			return nil, core.NewProviderError(string(core.KindGoogle), http.StatusBadGateway, "failed to parse models response", nil)
		}

		parsed := gjson.ParseBytes(raw)
		for _, m := range parsed.Get("models").Array() {
			if !supports(m.Get("supportedGenerationMethods"), generateContent) {
				continue
			}
			models = append(models, strings.TrimPrefix(m.Get("name").String(), modelNamePrefix))
		}

		pageToken = parsed.Get("nextPageToken").String()
		if pageToken == "" {
			return models, nil
		}
	}
	return models, nil
}

func supports(methods gjson.Result, method string) bool {
	for _, m := range methods.Array() {
		if m.String() == method {
			return true
		}
	}
	return false
}

// Package openai provides OpenAI API integration for the chat gateway.
package openai

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"ragchat/internal/core"
	"ragchat/internal/providers"
	"ragchat/internal/providers/openaicompat"
)

// Registration provides factory registration for the OpenAI provider.
var Registration = providers.Registration{
	Kind: core.KindOpenAI,
	New:  New,
}

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	chatModelPrefix = "gpt-"
)

// Provider implements core.Provider for OpenAI.
type Provider struct {
	*openaicompat.Provider
}

// New creates a new OpenAI provider.
func New(id core.Identity, opts providers.ProviderOptions) (core.Provider, error) {
	cfg := opts.ClientConfig(string(core.KindOpenAI), defaultBaseURL)
	return &Provider{Provider: openaicompat.New(cfg, id.APIKey, setHeaders)}, nil
}

// setHeaders forwards the request ID using OpenAI's X-Client-Request-Id header.
// OpenAI rejects values that are not ASCII or longer than 512 bytes.
func setHeaders(req *http.Request) {
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// ListModels returns the chat models ("gpt-" ids), newest names first.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	ids, err := p.Provider.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.HasPrefix(id, chatModelPrefix) {
			models = append(models, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(models)))
	return models, nil
}

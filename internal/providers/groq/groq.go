// Package groq provides Groq API integration for the chat gateway.
package groq

import (
	"context"
	"sort"

	"ragchat/internal/core"
	"ragchat/internal/providers"
	"ragchat/internal/providers/openaicompat"
)

// Registration provides factory registration for the Groq provider.
var Registration = providers.Registration{
	Kind: core.KindGroq,
	New:  New,
}

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
)

// Provider implements core.Provider for Groq
type Provider struct {
	*openaicompat.Provider
}

// New creates a new Groq provider.
func New(id core.Identity, opts providers.ProviderOptions) (core.Provider, error) {
	cfg := opts.ClientConfig(string(core.KindGroq), defaultBaseURL)
	return &Provider{Provider: openaicompat.New(cfg, id.APIKey, nil)}, nil
}

// ListModels returns every model id, sorted ascending.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	ids, err := p.Provider.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

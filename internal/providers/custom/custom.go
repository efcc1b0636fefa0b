// Package custom connects the gateway to user-defined OpenAI-compatible endpoints.
package custom

import (
	"context"
	"sort"
	"strings"

	"ragchat/internal/core"
	"ragchat/internal/providers"
	"ragchat/internal/providers/openaicompat"
)

// Registration provides factory registration for custom providers.
var Registration = providers.Registration{
	Kind: core.KindCustom,
	New:  New,
}

// Provider implements core.Provider for a caller-supplied base URL.
type Provider struct {
	*openaicompat.Provider
}

// New creates a provider talking to id.BaseURL. Gateway-level base URL
// overrides do not apply.
func New(id core.Identity, opts providers.ProviderOptions) (core.Provider, error) {
	if strings.TrimSpace(id.BaseURL) == "" {
		return nil, core.NewInvalidRequestError("baseUrl is required for custom providers", nil)
	}
	opts.BaseURL = ""
	cfg := opts.ClientConfig(string(core.KindCustom), strings.TrimSpace(id.BaseURL))
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

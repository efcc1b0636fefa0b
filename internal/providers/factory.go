// Package providers builds upstream LLM providers from caller identities and
// exposes them through a uniform, failure-tolerant client.
package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"ragchat/internal/core"
	"ragchat/internal/llmclient"
)

// ProviderOptions carries the gateway-wide settings a provider constructor needs.
type ProviderOptions struct {
	// Hooks observe every upstream request made by the provider.
	Hooks llmclient.Hooks

	// BaseURL overrides the provider's default endpoint. Empty means default.
	// Custom providers ignore it and use the identity's base URL.
	BaseURL string

	// MaxRetries applies to non-streaming calls such as model listing.
	MaxRetries int
}

// ClientConfig returns an llmclient configuration for a provider named name,
// using BaseURL when set and fallback otherwise.
func (o ProviderOptions) ClientConfig(name, fallback string) llmclient.Config {
	baseURL := fallback
	if o.BaseURL != "" {
		baseURL = o.BaseURL
	}
	cfg := llmclient.DefaultConfig(name, strings.TrimRight(baseURL, "/"))
	cfg.Hooks = o.Hooks
	cfg.MaxRetries = o.MaxRetries
	return cfg
}

// Constructor creates a provider bound to one identity.
type Constructor func(id core.Identity, opts ProviderOptions) (core.Provider, error)

// Registration binds a provider kind to its constructor. Each provider
// package exports one; adding a provider means adding one Registration.
type Registration struct {
	Kind core.ProviderKind
	New  Constructor
}

// UnsupportedProviderError is returned when no provider is registered for a kind.
type UnsupportedProviderError struct {
	Kind core.ProviderKind
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("Unsupported provider '%s'", e.Kind)
}

// ProviderFactory creates providers by kind.
type ProviderFactory struct {
	mu         sync.RWMutex
	builders   map[core.ProviderKind]Constructor
	baseURLs   map[core.ProviderKind]string
	hooks      llmclient.Hooks
	maxRetries int
}

// NewProviderFactory creates an empty factory.
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{
		builders: make(map[core.ProviderKind]Constructor),
		baseURLs: make(map[core.ProviderKind]string),
	}
}

// Add registers a provider. A later registration for the same kind replaces the earlier one.
func (f *ProviderFactory) Add(reg Registration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[reg.Kind] = reg.New
}

// SetHooks sets the observability hooks passed to every provider.
func (f *ProviderFactory) SetHooks(hooks llmclient.Hooks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = hooks
}

// GetHooks returns the configured hooks.
func (f *ProviderFactory) GetHooks() llmclient.Hooks {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.hooks
}

// SetBaseURL overrides the default endpoint of a provider kind.
func (f *ProviderFactory) SetBaseURL(kind core.ProviderKind, baseURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if baseURL == "" {
		delete(f.baseURLs, kind)
		return
	}
	f.baseURLs[kind] = baseURL
}

// SetMaxRetries sets the retry budget for non-streaming upstream calls.
func (f *ProviderFactory) SetMaxRetries(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxRetries = n
}

// Create validates id and instantiates the provider registered for its kind.
func (f *ProviderFactory) Create(id core.Identity) (core.Provider, error) {
	f.mu.RLock()
	builder, ok := f.builders[id.Kind]
	opts := ProviderOptions{
		Hooks:      f.hooks,
		BaseURL:    f.baseURLs[id.Kind],
		MaxRetries: f.maxRetries,
	}
	f.mu.RUnlock()

	if !ok {
		return nil, &UnsupportedProviderError{Kind: id.Kind}
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return builder(id, opts)
}

// Kinds returns the registered provider kinds in sorted order.
func (f *ProviderFactory) Kinds() []core.ProviderKind {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]core.ProviderKind, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

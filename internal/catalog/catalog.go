// Package catalog lists the models of every provider a caller holds credentials for.
package catalog

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ragchat/internal/cache"
	"ragchat/internal/core"
	"ragchat/internal/providers"
)

// CustomIdentity identifies one custom provider in a catalog request.
type CustomIdentity struct {
	ID      string `json:"id"`
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
}

// Request carries the credentials to list models for. An empty key means
// the provider is absent.
type Request struct {
	Google string
	OpenAI string
	Groq   string
	Custom []CustomIdentity
}

// Result holds one listing per provider. Absent providers have an empty,
// successful listing.
type Result struct {
	Google ModelList
	OpenAI ModelList
	Groq   ModelList
	Custom map[string]ModelList
}

// ModelList is re-exported for callers that only deal with the catalog.
type ModelList = core.ModelList

// Service lists models across providers.
type Service struct {
	factory *providers.ProviderFactory
	cache   cache.Cache
}

// New creates a catalog service. c may be nil to disable caching.
func New(factory *providers.ProviderFactory, c cache.Cache) *Service {
	return &Service{factory: factory, cache: c}
}

// ListAll lists every present identity concurrently. A failure in one
// listing is carried in its ModelList and never affects the others.
// Custom entries sharing an id resolve to the last one in the request.
func (s *Service) ListAll(ctx context.Context, req Request) Result {
	res := Result{
		Google: emptyList(),
		OpenAI: emptyList(),
		Groq:   emptyList(),
		Custom: make(map[string]ModelList, len(req.Custom)),
	}

	// Resolve duplicate ids up front so every goroutine owns its own slot.
	customs := make(map[string]CustomIdentity, len(req.Custom))
	for _, c := range req.Custom {
		customs[c.ID] = c
	}
	customResults := make(map[string]*ModelList, len(customs))
	for id := range customs {
		customResults[id] = new(ModelList)
	}

	var g errgroup.Group
	list := func(dst *ModelList, id core.Identity) {
		g.Go(func() error {
			*dst = s.list(ctx, id)
			return nil
		})
	}

	if req.Google != "" {
		list(&res.Google, core.Identity{Kind: core.KindGoogle, APIKey: req.Google})
	}
	if req.OpenAI != "" {
		list(&res.OpenAI, core.Identity{Kind: core.KindOpenAI, APIKey: req.OpenAI})
	}
	if req.Groq != "" {
		list(&res.Groq, core.Identity{Kind: core.KindGroq, APIKey: req.Groq})
	}
	for id, c := range customs {
		list(customResults[id], core.Identity{Kind: core.KindCustom, APIKey: c.APIKey, BaseURL: c.BaseURL})
	}

	_ = g.Wait()

	for id, l := range customResults {
		res.Custom[id] = *l
	}
	return res
}

func (s *Service) list(ctx context.Context, id core.Identity) ModelList {
	key := cache.Key(string(id.Kind), id.BaseURL, id.APIKey)
	if s.cache != nil {
		entry, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("model cache read failed", "provider", id.Kind, "error", err)
		} else if entry != nil {
			return ModelList{Models: entry.Models}
		}
	}

	l := providers.NewClient(s.factory, id, "").ListModels(ctx)
	if l.OK() && s.cache != nil {
		if err := s.cache.Set(ctx, key, &cache.ModelListEntry{Models: l.Models}); err != nil {
			slog.Warn("model cache write failed", "provider", id.Kind, "error", err)
		}
	}
	return l
}

func emptyList() ModelList {
	return ModelList{Models: []string{}}
}

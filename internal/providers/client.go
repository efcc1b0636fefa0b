package providers

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"ragchat/internal/core"
)

// Client is the gateway's view of one provider identity and model. It never
// returns Go errors: failures travel inside the stream or the model list.
type Client struct {
	factory  *ProviderFactory
	identity core.Identity
	model    string
}

// NewClient creates a client for identity and model.
func NewClient(factory *ProviderFactory, identity core.Identity, model string) *Client {
	return &Client{
		factory:  factory,
		identity: identity,
		model:    model,
	}
}

// StreamChat streams the reply to msgs. Setup and upstream failures are
// delivered as a single final chunk with Err set; nothing follows it.
func (c *Client) StreamChat(ctx context.Context, msgs []core.Message) iter.Seq[core.StreamChunk] {
	return func(yield func(core.StreamChunk) bool) {
		p, err := c.factory.Create(c.identity)
		if err != nil {
			yield(core.StreamChunk{Err: err})
			return
		}

		for chunk := range p.StreamChat(ctx, c.model, msgs) {
			if !yield(chunk) || chunk.Err != nil {
				return
			}
		}
	}
}

// ListModels lists the identity's models. Unknown kinds and custom
// identities without a base URL produce an empty list.
func (c *Client) ListModels(ctx context.Context) core.ModelList {
	if c.identity.Kind == core.KindCustom && c.identity.BaseURL == "" {
		return core.ModelList{Models: []string{}}
	}

	p, err := c.factory.Create(c.identity)
	if err != nil {
		var unsupported *UnsupportedProviderError
		if errors.As(err, &unsupported) {
			return core.ModelList{Models: []string{}}
		}
		slog.Error("failed to create provider for model listing", "provider", c.identity.Kind, "error", err)
		return core.ModelList{Err: err}
	}

	models, err := p.ListModels(ctx)
	if err != nil {
		slog.Error("failed to list models", "provider", c.identity.Kind, "base_url", c.identity.BaseURL, "error", err)
		return core.ModelList{Err: err}
	}
	if models == nil {
		models = []string{}
	}
	return core.ModelList{Models: models}
}

// ChunkText renders a stream chunk as the plain text written to clients.
// Error chunks become "Error: Unsupported provider '<kind>'" or
// "Error communicating with <provider>: <message>".
func ChunkText(provider core.ProviderKind, chunk core.StreamChunk) string {
	if chunk.Err == nil {
		return chunk.Text
	}
	var unsupported *UnsupportedProviderError
	if errors.As(chunk.Err, &unsupported) {
		return "Error: " + unsupported.Error()
	}
	return fmt.Sprintf("Error communicating with %s: %s", provider, core.ErrorMessage(chunk.Err))
}

// Package core defines the core interfaces and types for the chat gateway.
package core

import (
	"context"
	"iter"
)

// Provider is one upstream LLM provider bound to a single identity.
type Provider interface {
	// StreamChat streams the assistant reply for msgs. The sequence ends after
	// the upstream signals completion or after a chunk carrying an error.
	// Stopping iteration early releases the upstream connection.
	StreamChat(ctx context.Context, model string, msgs []Message) iter.Seq[StreamChunk]

	// ListModels returns the model names the provider exposes, already
	// filtered and ordered for display.
	ListModels(ctx context.Context) ([]string, error)
}

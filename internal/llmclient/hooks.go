package llmclient

import (
	"context"
	"time"
)

// RequestInfo describes an upstream request about to be sent.
type RequestInfo struct {
	Provider string
	Method   string
	Endpoint string
	Stream   bool
}

// ResponseInfo describes the outcome of an upstream request. For streaming
// requests it is reported once response headers arrive, not when the body ends.
type ResponseInfo struct {
	RequestInfo
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Hooks observe upstream requests. Both callbacks are optional.
type Hooks struct {
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd   func(ctx context.Context, info ResponseInfo)
}

func (h Hooks) start(ctx context.Context, info RequestInfo) context.Context {
	if h.OnRequestStart == nil {
		return ctx
	}
	if next := h.OnRequestStart(ctx, info); next != nil {
		return next
	}
	return ctx
}

func (h Hooks) end(ctx context.Context, info ResponseInfo) {
	if h.OnRequestEnd != nil {
		h.OnRequestEnd(ctx, info)
	}
}

// Package server provides HTTP handlers and server setup for the chat gateway.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"ragchat/internal/catalog"
	"ragchat/internal/core"
	"ragchat/internal/documents"
	"ragchat/internal/keystore"
	"ragchat/internal/providers"
	"ragchat/internal/providerstore"
	"ragchat/internal/usage"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Factory   *providers.ProviderFactory
	Catalog   *catalog.Service
	Documents *documents.Store
	Keys      *keystore.Store
	Providers *providerstore.Store
	Usage     usage.LoggerInterface // nil disables usage tracking
	Reader    usage.UsageReader     // nil when usage tracking is disabled
}

// Handler holds the HTTP handlers
type Handler struct {
	deps Deps
}

// NewHandler creates a new handler with the given collaborators.
func NewHandler(deps Deps) *Handler {
	if deps.Usage == nil {
		deps.Usage = &usage.NoopLogger{}
	}
	return &Handler{deps: deps}
}

type chatRequest struct {
	Messages []core.Message `json:"messages"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	APIKey   string         `json:"apiKey"`
	BaseURL  string         `json:"baseUrl"`
}

// Chat handles POST /api/chat. The reply is streamed as plain text; provider
// failures arrive in-band as the final chunk.
func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.Provider == "" {
		return handleError(c, core.NewInvalidRequestError("provider is required", nil))
	}
	if req.Model == "" {
		return handleError(c, core.NewInvalidRequestError("model is required", nil))
	}

	kind := core.ProviderKind(req.Provider)
	identity := core.Identity{Kind: kind, APIKey: req.APIKey}
	// The front end may send a stale baseUrl for built-in providers.
	if kind == core.KindCustom {
		identity.BaseURL = req.BaseURL
	}

	ctx := c.Request().Context()
	slog.Info("chat request", "provider", req.Provider, "model", req.Model, "messages", len(req.Messages))

	client := providers.NewClient(h.deps.Factory, identity, req.Model)
	render := func(err error) string {
		return providers.ChunkText(kind, core.StreamChunk{Err: err})
	}
	stream := usage.Track(ctx, h.deps.Usage, usage.StreamInfo{
		RequestID: core.GetRequestID(ctx),
		Provider:  req.Provider,
		Model:     req.Model,
		Endpoint:  c.Path(),
	}, client.StreamChat(ctx, core.NormalizeMessages(req.Messages)), render)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for chunk := range stream {
		if _, err := io.WriteString(resp, providers.ChunkText(kind, chunk)); err != nil {
			// Client went away; stopping the range closes the upstream body.
			slog.Debug("chat client disconnected", "error", err)
			break
		}
		resp.Flush()
	}
	return nil
}

type customListRequest struct {
	ID      string `json:"id"`
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
}

type listModelsRequest struct {
	Google          string              `json:"google"`
	OpenAI          string              `json:"openai"`
	Groq            string              `json:"groq"`
	CustomProviders []customListRequest `json:"custom_providers"`
}

type listModelsResponse struct {
	Google []string            `json:"google"`
	OpenAI []string            `json:"openai"`
	Groq   []string            `json:"groq"`
	Custom map[string][]string `json:"custom"`
}

// ListModels handles POST /api/list-models. Failures of a single provider
// are reported in its list and never fail the request.
func (h *Handler) ListModels(c echo.Context) error {
	var req listModelsRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}

	creq := catalog.Request{Google: req.Google, OpenAI: req.OpenAI, Groq: req.Groq}
	for _, p := range req.CustomProviders {
		creq.Custom = append(creq.Custom, catalog.CustomIdentity{ID: p.ID, APIKey: p.APIKey, BaseURL: p.BaseURL})
	}

	res := h.deps.Catalog.ListAll(c.Request().Context(), creq)

	out := listModelsResponse{
		Google: res.Google.Wire(),
		OpenAI: res.OpenAI.Wire(),
		Groq:   res.Groq.Wire(),
		Custom: make(map[string][]string, len(res.Custom)),
	}
	for id, list := range res.Custom {
		out.Custom[id] = list.Wire()
	}
	return c.JSON(http.StatusOK, out)
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Root handles GET /api/
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Enterprise RAG Chat API is running"})
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		if gatewayErr.HTTPStatusCode() >= http.StatusInternalServerError {
			slog.Error("request failed", "path", c.Path(), "error", err)
		}
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	slog.Error("unexpected error", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}

func statusMessage(msg string) map[string]string {
	return map[string]string{"status": "success", "message": msg}
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

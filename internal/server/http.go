package server

import (
	"context"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBodySizeLimit applies when Config.BodySizeLimit is empty.
const DefaultBodySizeLimit = "32M"

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey       string   // Optional: bearer token required on /api routes
	MetricsEnabled  bool     // Whether to expose the Prometheus metrics endpoint
	MetricsEndpoint string   // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   string   // Max request body size, e.g. "32M"
	CORSOrigins     []string // Allowed origins; empty allows all
}

// New creates the HTTP server for the gateway.
func New(deps Deps, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(deps)

	authSkipPaths := []string{"/health"}

	metricsPath := "/metrics"
	if cfg.MetricsEnabled {
		if cfg.MetricsEndpoint != "" {
			metricsPath = path.Clean("/" + cfg.MetricsEndpoint)
		}
		authSkipPaths = append(authSkipPaths, metricsPath)
	}

	// Global middleware stack (order matters)
	e.Use(middleware.Recover())
	e.Use(RequestID())
	e.Use(RequestLogger())
	e.Use(middleware.CORSWithConfig(corsConfig(cfg.CORSOrigins)))

	bodySizeLimit := DefaultBodySizeLimit
	if cfg.BodySizeLimit != "" {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(bodySizeLimit))

	if cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api")
	api.GET("/", handler.Root)
	api.POST("/chat", handler.Chat)
	api.POST("/list-models", handler.ListModels)
	api.POST("/save-keys", handler.SaveKeys)
	api.GET("/load-keys", handler.LoadKeys)
	api.GET("/load-providers", handler.LoadProviders)
	api.POST("/save-providers", handler.SaveProviders)
	api.POST("/upload", handler.Upload)
	api.GET("/documents", handler.Documents)
	api.DELETE("/spaces/:space_id", handler.DeleteSpace)
	api.DELETE("/chats/:chat_id", handler.DeleteChat)
	api.GET("/usage", handler.Usage)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

func corsConfig(origins []string) middleware.CORSConfig {
	cfg := middleware.DefaultCORSConfig
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

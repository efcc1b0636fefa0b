// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the ragchat server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ragchat/config"
	"ragchat/internal/cache"
	"ragchat/internal/catalog"
	"ragchat/internal/core"
	"ragchat/internal/documents"
	"ragchat/internal/keystore"
	"ragchat/internal/observability"
	"ragchat/internal/providers"
	"ragchat/internal/providerstore"
	"ragchat/internal/server"
	"ragchat/internal/usage"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config *config.Config
	cache  cache.Cache
	usage  *usage.Result
	server *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig holds the loaded application configuration.
	AppConfig *config.LoadResult

	// Factory provides the ProviderFactory used to construct provider instances.
	Factory *providers.ProviderFactory

	// Registerer receives the Prometheus collectors when metrics are enabled.
	// Defaults to prometheus.DefaultRegisterer, which the metrics endpoint serves.
	Registerer prometheus.Registerer
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.AppConfig.Config == nil {
		return nil, fmt.Errorf("app config contains nil Config")
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("factory is required")
	}

	appCfg := cfg.AppConfig.Config
	app := &App{config: appCfg}

	configureFactory(cfg.Factory, appCfg.Providers)

	var metrics *observability.Metrics
	if appCfg.Metrics.Enabled {
		reg := cfg.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		metrics = observability.NewMetrics(reg)
		cfg.Factory.SetHooks(metrics.Hooks())
	}

	modelCache, err := buildCache(appCfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model cache: %w", err)
	}
	app.cache = modelCache

	usageResult, err := usage.New(ctx, appCfg)
	if err != nil {
		closeErr := app.closeCache()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to initialize usage tracking: %w (also: cache close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize usage tracking: %w", err)
	}
	app.usage = usageResult

	app.logStartupInfo(cfg.AppConfig.ConfigFile)

	usageLogger := usageResult.Logger
	if metrics != nil {
		usageLogger = usage.Fanout(usageLogger, metrics.ChatLogger())
	}

	files := appCfg.Files
	deps := server.Deps{
		Factory:   cfg.Factory,
		Catalog:   catalog.New(cfg.Factory, modelCache),
		Documents: documents.NewStore(files.DataDir),
		Keys:      keystore.NewStore(files.CredentialsFile),
		Providers: providerstore.NewStore(files.ProvidersFile),
		Usage:     usageLogger,
		Reader:    usageResult.Reader,
	}

	app.server = server.New(deps, &server.Config{
		MasterKey:       appCfg.Server.MasterKey,
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
		CORSOrigins:     appCfg.Server.CORSOrigins,
	})

	return app, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server
}

// configureFactory applies base URL overrides and retry settings.
func configureFactory(f *providers.ProviderFactory, cfg config.ProvidersConfig) {
	f.SetBaseURL(core.KindGoogle, cfg.GoogleBaseURL)
	f.SetBaseURL(core.KindOpenAI, cfg.OpenAIBaseURL)
	f.SetBaseURL(core.KindGroq, cfg.GroqBaseURL)
	if cfg.MaxRetries > 0 {
		f.SetMaxRetries(cfg.MaxRetries)
	}
}

// buildCache returns nil when caching is disabled.
func buildCache(cfg config.CacheConfig) (cache.Cache, error) {
	ttl := time.Duration(cfg.TTL) * time.Second
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			URL:    cfg.Redis.URL,
			Prefix: cfg.Redis.Prefix,
			TTL:    ttl,
		})
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return cache.NewLocalCache(ttl), nil
	}
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server first, then the usage logger (flushing pending entries),
// then the model cache.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every close step and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.usage != nil {
		if err := a.usage.Close(); err != nil {
			slog.Error("usage logger close error", "error", err)
			errs = append(errs, fmt.Errorf("usage close: %w", err))
		}
	}

	if err := a.closeCache(); err != nil {
		slog.Error("model cache close error", "error", err)
		errs = append(errs, fmt.Errorf("cache close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

func (a *App) closeCache() error {
	if a.cache == nil {
		return nil
	}
	err := a.cache.Close()
	a.cache = nil
	return err
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo(configFile string) {
	cfg := a.config

	if configFile != "" {
		slog.Info("configuration loaded", "file", configFile)
	}

	if cfg.Server.MasterKey == "" {
		slog.Warn("SECURITY WARNING: RAGCHAT_MASTER_KEY not set - server running in UNSAFE MODE",
			"security_risk", "unauthenticated access allowed",
			"recommendation", "set RAGCHAT_MASTER_KEY environment variable to secure this gateway")
	} else {
		slog.Info("authentication enabled", "mode", "master_key")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("file storage configured",
		"data_dir", cfg.Files.DataDir,
		"credentials_file", cfg.Files.CredentialsFile,
	)

	if a.cache == nil {
		slog.Info("model list cache disabled")
	} else {
		slog.Info("model list cache enabled", "type", cfg.Cache.Type, "ttl_seconds", cfg.Cache.TTL)
	}

	if cfg.Usage.Enabled {
		slog.Info("usage tracking enabled",
			"storage_type", cfg.Storage.Type,
			"buffer_size", cfg.Usage.BufferSize,
			"flush_interval", cfg.Usage.FlushInterval,
			"retention_days", cfg.Usage.RetentionDays,
		)
	} else {
		slog.Info("usage tracking disabled")
	}
}

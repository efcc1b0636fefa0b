// Package main is the entry point for the ragchat gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ragchat/config"
	"ragchat/internal/app"
	"ragchat/internal/logging"
	"ragchat/internal/providers"
	"ragchat/internal/providers/custom"
	"ragchat/internal/providers/gemini"
	"ragchat/internal/providers/groq"
	"ragchat/internal/providers/openai"
	"ragchat/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// JSON until the configured format is known.
	slog.SetDefault(logging.New(logging.FormatJSON, "info", os.Stdout))

	result, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := result.Config

	slog.SetDefault(logging.New(cfg.Log.Format, cfg.Log.Level, os.Stdout))

	slog.Info("starting ragchat",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	factory := providers.NewProviderFactory()
	factory.Add(gemini.Registration)
	factory.Add(openai.Registration)
	factory.Add(groq.Registration)
	factory.Add(custom.Registration)

	application, err := app.New(context.Background(), app.Config{
		AppConfig: result,
		Factory:   factory,
	})
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start(":" + cfg.Server.Port)
	}()

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
			exitCode = 1
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("application shutdown error", "error", err)
		exitCode = 1
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

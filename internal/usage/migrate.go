package usage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationFiles embed.FS

// migrate applies the chat_usage schema migrations for dialect. dir names
// the subdirectory of migrations/ holding that dialect's files.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrationFiles, "migrations/"+dir)
	if err != nil {
		return fmt.Errorf("failed to open %s migrations: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run usage migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("applied usage migration", "dialect", dir, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

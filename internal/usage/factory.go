package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ragchat/config"
	"ragchat/internal/storage"
)

// Result bundles what New opened. Close releases it in reverse order.
type Result struct {
	Logger  LoggerInterface
	Reader  UsageReader // nil when usage tracking is disabled
	Storage storage.Storage
}

// Close stops the logger, which drains and closes its store, then closes
// the database. It is safe to call more than once.
func (r *Result) Close() error {
	var loggerErr, storageErr error
	if r.Logger != nil {
		if err := r.Logger.Close(); err != nil {
			loggerErr = fmt.Errorf("logger close: %w", err)
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			storageErr = fmt.Errorf("storage close: %w", err)
		}
		r.Storage = nil
	}
	return errors.Join(loggerErr, storageErr)
}

// New wires the usage log described by cfg. With usage disabled it returns a
// NoopLogger and touches no database.
func New(ctx context.Context, cfg *config.Config) (_ *Result, err error) {
	if !cfg.Usage.Enabled {
		return &Result{Logger: &NoopLogger{}}, nil
	}

	db, err := storage.New(ctx, storageConfig(cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	var store UsageStore
	switch db.Type() {
	case storage.TypeSQLite:
		store, err = NewSQLiteStore(ctx, db.SQLiteDB(), cfg.Usage.RetentionDays)
	case storage.TypePostgreSQL:
		store, err = NewPostgreSQLStore(ctx, db.PostgreSQLPool(), cfg.Usage.RetentionDays)
	default:
		err = fmt.Errorf("unknown storage type: %s", db.Type())
	}
	if err != nil {
		return nil, err
	}

	reader, err := NewReader(db)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Result{
		Logger:  NewLogger(store, loggerConfig(cfg.Usage)),
		Reader:  reader,
		Storage: db,
	}, nil
}

func storageConfig(cfg config.StorageConfig) storage.Config {
	out := storage.DefaultConfig()
	if cfg.Type != "" {
		out.Type = cfg.Type
	}
	if cfg.SQLite.Path != "" {
		out.SQLite.Path = cfg.SQLite.Path
	}
	out.PostgreSQL.URL = cfg.PostgreSQL.URL
	if cfg.PostgreSQL.MaxConns > 0 {
		out.PostgreSQL.MaxConns = cfg.PostgreSQL.MaxConns
	}
	return out
}

// loggerConfig converts the seconds-based config file values. NewLogger fills
// in defaults for anything non-positive.
func loggerConfig(u config.UsageConfig) Config {
	return Config{
		Enabled:       u.Enabled,
		BufferSize:    u.BufferSize,
		FlushInterval: time.Duration(u.FlushInterval) * time.Second,
		RetentionDays: u.RetentionDays,
	}
}

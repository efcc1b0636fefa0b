package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgreSQLStore implements UsageStore for PostgreSQL databases.
type PostgreSQLStore struct {
	pool      *pgxpool.Pool
	retention *retention
}

// NewPostgreSQLStore migrates the chat_usage table and starts the retention
// cleanup loop when retentionDays is positive.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	// goose works on database/sql; the wrapper borrows connections from pool.
	db := stdlib.OpenDBFromPool(pool)
	err := migrate(ctx, db, goose.DialectPostgres, "postgres")
	_ = db.Close()
	if err != nil {
		return nil, err
	}

	store := &PostgreSQLStore{pool: pool}
	store.retention = startRetention(retentionDays, CleanupInterval, store.prune)
	return store, nil
}

const insertEntrySQL = `
	INSERT INTO chat_usage (id, request_id, timestamp, provider, model, endpoint,
		chunks, output_bytes, status, error_message, duration_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO NOTHING`

// WriteBatch sends all inserts in one pgx batch inside a transaction.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertEntrySQL, e.ID, e.RequestID, e.Timestamp, e.Provider, e.Model, e.Endpoint,
			e.Chunks, e.OutputBytes, e.Status, e.ErrorMessage, e.DurationMs)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert %d usage entries: %w", len(entries), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Flush is a no-op; WriteBatch commits before returning.
func (s *PostgreSQLStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the retention loop. The pool belongs to the storage layer.
func (s *PostgreSQLStore) Close() error {
	s.retention.halt()
	return nil
}

func (s *PostgreSQLStore) prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM "+usageTable+" WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

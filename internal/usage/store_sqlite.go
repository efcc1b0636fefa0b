package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
)

// sqliteTimeFormat is fixed width so stored timestamps compare correctly as text.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLite allows 999 bound parameters per statement by default.
const (
	maxSQLiteParams    = 999
	columnsPerEntry    = 11
	maxEntriesPerBatch = maxSQLiteParams / columnsPerEntry
)

// SQLiteStore implements UsageStore for SQLite databases.
type SQLiteStore struct {
	db        *sql.DB
	retention *retention
}

// NewSQLiteStore migrates the chat_usage table and starts the retention
// cleanup loop when retentionDays is positive.
func NewSQLiteStore(ctx context.Context, db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	store.retention = startRetention(retentionDays, CleanupInterval, store.prune)
	return store, nil
}

// WriteBatch inserts entries, chunked to stay within SQLite's parameter limit.
func (s *SQLiteStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	for i := 0; i < len(entries); i += maxEntriesPerBatch {
		end := min(i+maxEntriesPerBatch, len(entries))

		q := sq.Insert(usageTable).Options("OR IGNORE").Columns(usageColumns...)
		for _, e := range entries[i:end] {
			q = q.Values(
				e.ID,
				e.RequestID,
				e.Timestamp.UTC().Format(sqliteTimeFormat),
				e.Provider,
				e.Model,
				e.Endpoint,
				e.Chunks,
				e.OutputBytes,
				e.Status,
				e.ErrorMessage,
				e.DurationMs,
			)
		}

		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build usage insert: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert usage batch %d: %w", i/maxEntriesPerBatch, err)
		}
	}
	return nil
}

// Flush is a no-op; WriteBatch commits before returning.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the retention loop. The DB belongs to the storage layer.
func (s *SQLiteStore) Close() error {
	s.retention.halt()
	return nil
}

func (s *SQLiteStore) prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+usageTable+" WHERE timestamp < ?", cutoff.Format(sqliteTimeFormat))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragchat/internal/storage"
)

const usageTable = "chat_usage"

var usageColumns = []string{
	"id", "request_id", "timestamp", "provider", "model", "endpoint",
	"chunks", "output_bytes", "status", "error_message", "duration_ms",
}

// Summary aggregates chat usage for one provider and model.
type Summary struct {
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	Requests      int64   `json:"requests"`
	Errors        int64   `json:"errors"`
	Chunks        int64   `json:"chunks"`
	OutputBytes   int64   `json:"output_bytes"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// UsageReader reads aggregated usage back from storage.
type UsageReader interface {
	// Summary returns per provider and model totals for entries at or after
	// since, busiest first.
	Summary(ctx context.Context, since time.Time) ([]Summary, error)
}

// NewReader returns a reader for the given storage backend.
func NewReader(store storage.Storage) (UsageReader, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return &sqliteReader{db: store.SQLiteDB()}, nil
	case storage.TypePostgreSQL:
		return &postgresReader{pool: store.PostgreSQLPool()}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}

func summaryQuery(b sq.StatementBuilderType, since any) (string, []any, error) {
	return b.Select(
		"provider",
		"model",
		"COUNT(*)",
		fmt.Sprintf("COALESCE(SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END), 0)", StatusError),
		"COALESCE(SUM(chunks), 0)",
		"COALESCE(SUM(output_bytes), 0)",
		"COALESCE(CAST(AVG(duration_ms) AS DOUBLE PRECISION), 0)",
	).
		From(usageTable).
		Where(sq.GtOrEq{"timestamp": since}).
		GroupBy("provider", "model").
		OrderBy("COUNT(*) DESC", "provider", "model").
		ToSql()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (Summary, error) {
	var s Summary
	err := row.Scan(&s.Provider, &s.Model, &s.Requests, &s.Errors, &s.Chunks, &s.OutputBytes, &s.AvgDurationMs)
	return s, err
}

type sqliteReader struct {
	db *sql.DB
}

func (r *sqliteReader) Summary(ctx context.Context, since time.Time) ([]Summary, error) {
	query, args, err := summaryQuery(sq.StatementBuilder, since.UTC().Format(sqliteTimeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to build usage summary query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type postgresReader struct {
	pool *pgxpool.Pool
}

func (r *postgresReader) Summary(ctx context.Context, since time.Time) ([]Summary, error) {
	query, args, err := summaryQuery(sq.StatementBuilder.PlaceholderFormat(sq.Dollar), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to build usage summary query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

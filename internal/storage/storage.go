// Package storage opens the database behind the chat usage log. SQLite is the
// zero-setup default; PostgreSQL is used when several gateway replicas share
// one log.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
)

// Config selects and configures a backend. An empty Type means SQLite.
type Config struct {
	Type       string
	SQLite     SQLiteConfig
	PostgreSQL PostgreSQLConfig
}

type SQLiteConfig struct {
	Path string
}

type PostgreSQLConfig struct {
	URL      string
	MaxConns int
}

// Storage is an open connection to one backend. Exactly one of SQLiteDB and
// PostgreSQLPool is non-nil, matching Type.
type Storage interface {
	Type() string
	SQLiteDB() *sql.DB
	PostgreSQLPool() *pgxpool.Pool
	Close() error
}

// New opens the backend named by cfg.Type and checks that it answers.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", TypeSQLite:
		return NewSQLite(cfg.SQLite)
	case TypePostgreSQL:
		return NewPostgreSQL(ctx, cfg.PostgreSQL)
	}
	return nil, fmt.Errorf("unknown storage type: %s (valid: sqlite, postgresql)", cfg.Type)
}

// DefaultConfig is a SQLite file under data/.
func DefaultConfig() Config {
	return Config{
		Type:       TypeSQLite,
		SQLite:     SQLiteConfig{Path: DefaultSQLitePath},
		PostgreSQL: PostgreSQLConfig{MaxConns: defaultMaxConns},
	}
}

// handle backs both storage types.
type handle struct {
	kind string
	db   *sql.DB
	pool *pgxpool.Pool
}

func (h *handle) Type() string                  { return h.kind }
func (h *handle) SQLiteDB() *sql.DB             { return h.db }
func (h *handle) PostgreSQLPool() *pgxpool.Pool { return h.pool }

func (h *handle) Close() error {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

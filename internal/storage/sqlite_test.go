package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat.db")
	store, err := New(context.Background(), Config{Type: TypeSQLite, SQLite: SQLiteConfig{Path: path}})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, TypeSQLite, store.Type())
	assert.NotNil(t, store.SQLiteDB())
	assert.Nil(t, store.PostgreSQLPool())
	assert.FileExists(t, path)
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "mongodb"})
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestNewPostgreSQL_RequiresURL(t *testing.T) {
	_, err := NewPostgreSQL(context.Background(), PostgreSQLConfig{})
	assert.Error(t, err)
}

func TestSQLite_ConcurrentWrites(t *testing.T) {
	store, err := NewSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer store.Close()

	db := store.SQLiteDB()
	_, err = db.Exec(`CREATE TABLE events (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if _, err := db.Exec(`INSERT INTO events (id) VALUES (?)`, fmt.Sprintf("%d-%d", w, j)); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("insert failed: %v", err)
	}

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Equal(t, writers*perWriter, count)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"file:data/x.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		sqliteDSN("data/x.db"))
}

func TestSQLite_PragmasApplied(t *testing.T) {
	store, err := NewSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "p.db")})
	require.NoError(t, err)
	defer store.Close()

	var mode string
	require.NoError(t, store.SQLiteDB().QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestNewPostgreSQL_BadURL(t *testing.T) {
	_, err := NewPostgreSQL(context.Background(), PostgreSQLConfig{URL: "::not a url"})
	assert.ErrorContains(t, err, "failed to parse PostgreSQL URL")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, TypeSQLite, cfg.Type)
	assert.Equal(t, DefaultSQLitePath, cfg.SQLite.Path)
	assert.Equal(t, defaultMaxConns, cfg.PostgreSQL.MaxConns)
}

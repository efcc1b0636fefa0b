// Package usage records one entry per chat request for operational analytics.
// Entries are buffered in memory and written to SQLite or PostgreSQL in batches.
package usage

import (
	"context"
	"time"
)

// Entry statuses.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// BatchFlushThreshold is the number of entries that triggers an immediate flush.
const BatchFlushThreshold = 100

// UsageStore defines the interface for usage storage backends.
// Implementations must be safe for concurrent use.
type UsageStore interface {
	// WriteBatch writes multiple usage entries to storage.
	// This is called by the Logger when flushing buffered entries.
	WriteBatch(ctx context.Context, entries []*Entry) error

	// Flush forces any pending writes to complete.
	// Called during graceful shutdown.
	Flush(ctx context.Context) error

	// Close releases resources and flushes pending writes.
	Close() error
}

// Entry describes one finished chat stream.
type Entry struct {
	// ID is a unique identifier for this entry (UUID)
	ID string `json:"id"`

	// RequestID is the gateway request id (X-Request-ID)
	RequestID string `json:"request_id"`

	// Timestamp is when the stream started
	Timestamp time.Time `json:"timestamp"`

	Provider string `json:"provider"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`

	// Chunks is the number of text chunks delivered to the client
	Chunks int `json:"chunks"`

	// OutputBytes is the total size of the delivered text
	OutputBytes int `json:"output_bytes"`

	// Status is one of StatusOK, StatusError or StatusCancelled
	Status string `json:"status"`

	// ErrorMessage holds the in-band error text when Status is StatusError
	ErrorMessage string `json:"error_message,omitempty"`

	DurationMs int64 `json:"duration_ms"`
}

// Config holds usage tracking configuration
type Config struct {
	// Enabled controls whether usage tracking is active
	Enabled bool

	// BufferSize is the number of usage entries to buffer before dropping
	BufferSize int

	// FlushInterval is how often to flush buffered entries
	FlushInterval time.Duration

	// RetentionDays is how long to keep usage data (0 = forever)
	RetentionDays int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		RetentionDays: 90,
	}
}

package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	batchWriteTimeout = 30 * time.Second
	finalFlushTimeout = 10 * time.Second
)

// LoggerInterface is implemented by Logger, NoopLogger and Fanout.
type LoggerInterface interface {
	Write(entry *Entry)
	Config() Config
	Close() error
}

// Logger queues entries in memory and writes them to a UsageStore from a
// single background goroutine, in batches of up to BatchFlushThreshold or
// every FlushInterval, whichever comes first. Write never blocks the chat
// stream: when the queue is full the entry is dropped and counted.
type Logger struct {
	store  UsageStore
	config Config
	queue  chan *Entry

	// gate is read-held by Write while it sends, so Close can take the write
	// lock to know no send is in flight before closing queue.
	gate    sync.RWMutex
	closed  bool
	stopped chan struct{}
	dropped atomic.Int64
}

// NewLogger starts the background writer.
func NewLogger(store UsageStore, cfg Config) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	l := &Logger{
		store:   store,
		config:  cfg,
		queue:   make(chan *Entry, cfg.BufferSize),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// Write queues entry. Nil entries and writes after Close are ignored.
func (l *Logger) Write(entry *Entry) {
	if entry == nil {
		return
	}
	l.gate.RLock()
	defer l.gate.RUnlock()
	if l.closed {
		return
	}

	select {
	case l.queue <- entry:
	default:
		n := l.dropped.Add(1)
		slog.Warn("usage log buffer full, dropping entry",
			"request_id", entry.RequestID,
			"provider", entry.Provider,
			"model", entry.Model,
			"dropped_total", n,
		)
	}
}

// Dropped reports how many entries were discarded because the queue was full.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

func (l *Logger) Config() Config {
	return l.config
}

// Close writes everything still queued, flushes and closes the store.
// Calls after the first return nil.
func (l *Logger) Close() error {
	l.gate.Lock()
	if l.closed {
		l.gate.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.gate.Unlock()

	<-l.stopped
	return l.store.Close()
}

func (l *Logger) run() {
	defer close(l.stopped)

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	pending := make([]*Entry, 0, BatchFlushThreshold)
	write := func() {
		if len(pending) == 0 {
			return
		}
		l.writeBatch(pending)
		pending = make([]*Entry, 0, BatchFlushThreshold)
	}

	for {
		select {
		case entry, ok := <-l.queue:
			if !ok {
				write()
				l.finalFlush()
				return
			}
			pending = append(pending, entry)
			if len(pending) >= BatchFlushThreshold {
				write()
			}
		case <-ticker.C:
			write()
		}
	}
}

func (l *Logger) writeBatch(batch []*Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), batchWriteTimeout)
	defer cancel()
	if err := l.store.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write usage batch", "error", err, "count", len(batch))
	}
}

func (l *Logger) finalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	if err := l.store.Flush(ctx); err != nil {
		slog.Error("failed to flush usage store", "error", err)
	}
}

// NoopLogger is used when usage tracking is disabled.
type NoopLogger struct{}

func (*NoopLogger) Write(*Entry)   {}
func (*NoopLogger) Config() Config { return Config{} }
func (*NoopLogger) Close() error   { return nil }

package usage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockStore implements UsageStore for testing
type mockStore struct {
	entries []*Entry
	mu      sync.Mutex
	closed  bool
	flushed bool
}

func (m *mockStore) WriteBatch(_ context.Context, entries []*Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *mockStore) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed = true
	return nil
}

func (m *mockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockStore) getEntries() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*Entry, len(m.entries))
	copy(result, m.entries)
	return result
}

func TestLogger_PeriodicFlush(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, Config{Enabled: true, BufferSize: 100, FlushInterval: 50 * time.Millisecond})

	for i := 0; i < 5; i++ {
		logger.Write(&Entry{ID: fmt.Sprintf("e-%d", i), Provider: "openai", Model: "gpt-4o", Status: StatusOK})
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(store.getEntries()) < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := len(store.getEntries()); got != 5 {
		t.Fatalf("expected 5 entries, got %d", got)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("logger close error: %v", err)
	}
	if !store.closed || !store.flushed {
		t.Error("store should be flushed and closed")
	}
}

func TestLogger_CloseDrainsBuffer(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, Config{BufferSize: 10, FlushInterval: time.Hour})

	for i := 0; i < 3; i++ {
		logger.Write(&Entry{ID: fmt.Sprintf("e-%d", i)})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := len(store.getEntries()); got != 3 {
		t.Errorf("expected 3 entries after close, got %d", got)
	}
}

func TestLogger_WriteAfterCloseIsDropped(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, Config{BufferSize: 10, FlushInterval: time.Hour})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	logger.Write(&Entry{ID: "late"})
	logger.Write(nil)

	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if got := len(store.getEntries()); got != 0 {
		t.Errorf("expected no entries, got %d", got)
	}
}

func TestLogger_ConcurrentWritesAndClose(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, Config{BufferSize: 1000, FlushInterval: 10 * time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Write(&Entry{ID: fmt.Sprintf("%d-%d", w, j)})
			}
		}(i)
	}
	wg.Wait()

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := len(store.getEntries()); got != 200 {
		t.Errorf("expected 200 entries, got %d", got)
	}
}

func TestNoopLogger(t *testing.T) {
	var l LoggerInterface = &NoopLogger{}
	l.Write(&Entry{ID: "x"})
	if l.Config().Enabled {
		t.Error("noop logger must report disabled")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// blockingStore holds every WriteBatch until release is closed.
type blockingStore struct {
	mockStore
	release chan struct{}
}

func (b *blockingStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	<-b.release
	return b.mockStore.WriteBatch(ctx, entries)
}

func TestLogger_DropsWhenQueueIsFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	logger := NewLogger(store, Config{BufferSize: 1, FlushInterval: time.Hour})

	const total = 300
	for i := 0; i < total; i++ {
		logger.Write(&Entry{ID: fmt.Sprintf("e-%d", i)})
	}

	dropped := logger.Dropped()
	if dropped < total-BatchFlushThreshold-1 {
		t.Fatalf("expected at least %d drops, got %d", total-BatchFlushThreshold-1, dropped)
	}

	close(store.release)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := int64(len(store.getEntries())); got != total-dropped {
		t.Errorf("expected %d stored entries, got %d", total-dropped, got)
	}
}

package usage

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/core"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []*Entry
}

func (r *recordingLogger) Write(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingLogger) Config() Config { return Config{Enabled: true} }
func (r *recordingLogger) Close() error   { return nil }

func chunks(cs ...core.StreamChunk) iter.Seq[core.StreamChunk] {
	return func(yield func(core.StreamChunk) bool) {
		for _, c := range cs {
			if !yield(c) {
				return
			}
		}
	}
}

var info = StreamInfo{RequestID: "req-1", Provider: "groq", Model: "llama3", Endpoint: "/api/chat"}

func errText(err error) string { return "Error communicating with groq: " + err.Error() }

func TestTrack_Success(t *testing.T) {
	logger := &recordingLogger{}
	var got []string
	for c := range Track(context.Background(), logger, info, chunks(core.StreamChunk{Text: "ab"}, core.StreamChunk{Text: "cde"}), errText) {
		got = append(got, c.Text)
	}

	assert.Equal(t, []string{"ab", "cde"}, got)
	require.Len(t, logger.entries, 1)
	e := logger.entries[0]
	assert.Equal(t, StatusOK, e.Status)
	assert.Equal(t, 2, e.Chunks)
	assert.Equal(t, 5, e.OutputBytes)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "groq", e.Provider)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestTrack_Error(t *testing.T) {
	logger := &recordingLogger{}
	for range Track(context.Background(), logger, info, chunks(core.StreamChunk{Text: "a"}, core.StreamChunk{Err: errors.New("reset")}), errText) {
	}

	require.Len(t, logger.entries, 1)
	assert.Equal(t, StatusError, logger.entries[0].Status)
	assert.Equal(t, "Error communicating with groq: reset", logger.entries[0].ErrorMessage)
	assert.Equal(t, 1, logger.entries[0].Chunks)
}

func TestTrack_ConsumerStops(t *testing.T) {
	logger := &recordingLogger{}
	for range Track(context.Background(), logger, info, chunks(core.StreamChunk{Text: "a"}, core.StreamChunk{Text: "b"}), errText) {
		break
	}

	require.Len(t, logger.entries, 1)
	assert.Equal(t, StatusCancelled, logger.entries[0].Status)
	assert.Equal(t, 1, logger.entries[0].Chunks)
}

func TestTrack_ContextEndedQuietly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := &recordingLogger{}
	stream := func(yield func(core.StreamChunk) bool) {
		if !yield(core.StreamChunk{Text: "partial"}) {
			return
		}
		cancel()
	}
	for range Track(ctx, logger, info, stream, errText) {
	}

	require.Len(t, logger.entries, 1)
	assert.Equal(t, StatusCancelled, logger.entries[0].Status)
	assert.Equal(t, 1, logger.entries[0].Chunks)
}

func TestFanout(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	l := Fanout(a, b)

	l.Write(&Entry{ID: "x"})

	assert.Len(t, a.entries, 1)
	assert.Len(t, b.entries, 1)
	assert.True(t, l.Config().Enabled)
	assert.NoError(t, l.Close())
	assert.False(t, Fanout().Config().Enabled)
}

package usage

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/core"
)

// StreamInfo identifies the chat stream being tracked.
type StreamInfo struct {
	RequestID string
	Provider  string
	Model     string
	Endpoint  string
}

// Track wraps seq so that exactly one Entry is written to logger when
// iteration ends, whether the stream finished, failed, or the consumer
// stopped early. A stream that ends quietly after ctx is done counts as
// cancelled. errorText renders an error chunk for the entry.
func Track(ctx context.Context, logger LoggerInterface, info StreamInfo, seq iter.Seq[core.StreamChunk], errorText func(error) string) iter.Seq[core.StreamChunk] {
	return func(yield func(core.StreamChunk) bool) {
		entry := &Entry{
			ID:        uuid.NewString(),
			RequestID: info.RequestID,
			Timestamp: time.Now().UTC(),
			Provider:  info.Provider,
			Model:     info.Model,
			Endpoint:  info.Endpoint,
			Status:    StatusOK,
		}
		start := time.Now()
		defer func() {
			entry.DurationMs = time.Since(start).Milliseconds()
			logger.Write(entry)
		}()

		for chunk := range seq {
			if chunk.Err != nil {
				entry.Status = StatusError
				entry.ErrorMessage = errorText(chunk.Err)
			} else {
				entry.Chunks++
				entry.OutputBytes += len(chunk.Text)
			}
			if !yield(chunk) {
				if chunk.Err == nil {
					entry.Status = StatusCancelled
				}
				return
			}
		}
		if entry.Status == StatusOK && ctx.Err() != nil {
			entry.Status = StatusCancelled
		}
	}
}

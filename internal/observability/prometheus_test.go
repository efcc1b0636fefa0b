package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ragchat/internal/llmclient"
	"ragchat/internal/usage"
)

func TestHooks(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	hooks := m.Hooks()
	ctx := context.Background()

	info := llmclient.RequestInfo{Provider: "openai", Method: "POST", Endpoint: "/chat/completions", Stream: true}
	ctx = hooks.OnRequestStart(ctx, info)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamInFlight.WithLabelValues("openai")))

	hooks.OnRequestEnd(ctx, llmclient.ResponseInfo{RequestInfo: info, StatusCode: 200, Duration: 120 * time.Millisecond})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.upstreamInFlight.WithLabelValues("openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("openai", "true", "200")))

	hooks.OnRequestEnd(ctx, llmclient.ResponseInfo{RequestInfo: llmclient.RequestInfo{Provider: "groq"}, Err: errors.New("dial")})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("groq", "false", "network_error")))
}

func TestChatLogger(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	l := m.ChatLogger()

	l.Write(&usage.Entry{Provider: "google", Status: usage.StatusOK, Chunks: 3, OutputBytes: 42})
	l.Write(&usage.Entry{Provider: "mistral", Status: usage.StatusError})
	l.Write(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatStreams.WithLabelValues("google", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.chatChunks.WithLabelValues("google")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.chatBytes.WithLabelValues("google")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatStreams.WithLabelValues("other", "error")))
	assert.NoError(t, l.Close())
}

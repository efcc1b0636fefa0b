// Package observability exposes Prometheus metrics for upstream provider
// calls and chat streams.
package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"ragchat/internal/core"
	"ragchat/internal/llmclient"
	"ragchat/internal/usage"
)

const namespace = "ragchat"

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamInFlight *prometheus.GaugeVec
	chatStreams      *prometheus.CounterVec
	chatChunks       *prometheus.CounterVec
	chatBytes        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream provider requests by outcome",
		}, []string{"provider", "stream", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Time until upstream response headers arrive",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "stream"}),
		upstreamInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_requests_in_flight",
			Help:      "Upstream requests waiting for response headers",
		}, []string{"provider"}),
		chatStreams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_streams_total",
			Help:      "Finished chat streams by status",
		}, []string{"provider", "status"}),
		chatChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_stream_chunks_total",
			Help:      "Text chunks delivered to chat clients",
		}, []string{"provider"}),
		chatBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_stream_bytes_total",
			Help:      "Text bytes delivered to chat clients",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.upstreamRequests, m.upstreamDuration, m.upstreamInFlight, m.chatStreams, m.chatChunks, m.chatBytes)
	return m
}

// Hooks returns llmclient hooks feeding the upstream metrics.
func (m *Metrics) Hooks() llmclient.Hooks {
	return llmclient.Hooks{
		OnRequestStart: func(ctx context.Context, info llmclient.RequestInfo) context.Context {
			m.upstreamInFlight.WithLabelValues(info.Provider).Inc()
			return ctx
		},
		OnRequestEnd: func(_ context.Context, info llmclient.ResponseInfo) {
			stream := strconv.FormatBool(info.Stream)
			m.upstreamInFlight.WithLabelValues(info.Provider).Dec()
			m.upstreamRequests.WithLabelValues(info.Provider, stream, statusLabel(info)).Inc()
			m.upstreamDuration.WithLabelValues(info.Provider, stream).Observe(info.Duration.Seconds())
		},
	}
}

func statusLabel(info llmclient.ResponseInfo) string {
	if info.StatusCode != 0 {
		return strconv.Itoa(info.StatusCode)
	}
	if info.Err != nil {
		return "network_error"
	}
	return "unknown"
}

// ChatLogger returns a usage logger that turns finished chat entries into
// metrics. Combine it with the persistent logger via usage.Fanout.
func (m *Metrics) ChatLogger() usage.LoggerInterface {
	return &chatMetricsLogger{m: m}
}

type chatMetricsLogger struct {
	m *Metrics
}

func (l *chatMetricsLogger) Write(e *usage.Entry) {
	if e == nil {
		return
	}
	provider := e.Provider
	if !knownProvider(provider) {
		provider = "other"
	}
	l.m.chatStreams.WithLabelValues(provider, e.Status).Inc()
	l.m.chatChunks.WithLabelValues(provider).Add(float64(e.Chunks))
	l.m.chatBytes.WithLabelValues(provider).Add(float64(e.OutputBytes))
}

func (l *chatMetricsLogger) Config() usage.Config { return usage.Config{Enabled: true} }

func (l *chatMetricsLogger) Close() error { return nil }

// knownProvider bounds label cardinality: chat requests carry a free-form
// provider name.
func knownProvider(p string) bool {
	switch core.ProviderKind(p) {
	case core.KindGoogle, core.KindOpenAI, core.KindGroq, core.KindCustom:
		return true
	}
	return false
}

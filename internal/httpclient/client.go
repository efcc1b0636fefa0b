// Package httpclient owns the outbound HTTP clients used to reach LLM
// providers. Two profiles exist: one for token streams, which may stay open
// for minutes, and one for short request/response calls such as model listing.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// Profile tunes one outbound client.
type Profile struct {
	// Timeout bounds the whole exchange including the body. Zero means the
	// caller's context is the only limit.
	Timeout time.Duration
	// HeaderTimeout bounds the wait between sending the request and the
	// first response byte.
	HeaderTimeout  time.Duration
	DialTimeout    time.Duration
	TLSTimeout     time.Duration
	IdleTimeout    time.Duration
	MaxIdlePerHost int
}

// StreamProfile is used for chat completions. Generation can run for a long
// time, so only connection setup and time to first header are bounded.
func StreamProfile() Profile {
	return Profile{
		HeaderTimeout:  envDuration("RAGCHAT_STREAM_HEADER_TIMEOUT", 2*time.Minute),
		DialTimeout:    10 * time.Second,
		TLSTimeout:     10 * time.Second,
		IdleTimeout:    90 * time.Second,
		MaxIdlePerHost: 32,
	}
}

// ListProfile is used for model listing and other unary calls.
func ListProfile() Profile {
	return Profile{
		Timeout:        envDuration("RAGCHAT_LIST_TIMEOUT", 20*time.Second),
		HeaderTimeout:  envDuration("RAGCHAT_LIST_TIMEOUT", 20*time.Second),
		DialTimeout:    5 * time.Second,
		TLSTimeout:     5 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxIdlePerHost: 4,
	}
}

// envDuration reads a duration from the environment. Bare integers are
// seconds; anything time.ParseDuration accepts works too.
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}

// Build returns a client configured by p with its own connection pool.
func (p Profile) Build() *http.Client {
	dialer := &net.Dialer{Timeout: p.DialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   p.TLSTimeout,
		ResponseHeaderTimeout: p.HeaderTimeout,
		IdleConnTimeout:       p.IdleTimeout,
		MaxIdleConns:          p.MaxIdlePerHost * 4,
		MaxIdleConnsPerHost:   p.MaxIdlePerHost,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: p.Timeout}
}

var (
	streamOnce   sync.Once
	streamClient *http.Client
	listOnce     sync.Once
	listClient   *http.Client
)

// Streaming returns the process-wide client for streamed completions.
func Streaming() *http.Client {
	streamOnce.Do(func() { streamClient = StreamProfile().Build() })
	return streamClient
}

// Listing returns the process-wide client for unary calls.
func Listing() *http.Client {
	listOnce.Do(func() { listClient = ListProfile().Build() })
	return listClient
}

package server

import (
	"bytes"
	"context"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ragchat/internal/catalog"
	"ragchat/internal/core"
	"ragchat/internal/documents"
	"ragchat/internal/keystore"
	"ragchat/internal/providers"
	"ragchat/internal/providerstore"
	"ragchat/internal/usage"
)

// stubProvider is a core.Provider returning canned chunks and models.
type stubProvider struct {
	mu      sync.Mutex
	chunks  []core.StreamChunk
	models  []string
	listErr error

	gotID   core.Identity
	gotMsgs []core.Message
}

func (p *stubProvider) StreamChat(_ context.Context, _ string, msgs []core.Message) iter.Seq[core.StreamChunk] {
	p.mu.Lock()
	p.gotMsgs = msgs
	p.mu.Unlock()
	return func(yield func(core.StreamChunk) bool) {
		for _, c := range p.chunks {
			if !yield(c) {
				return
			}
		}
	}
}

func (p *stubProvider) ListModels(context.Context) ([]string, error) {
	return p.models, p.listErr
}

func stubRegistration(kind core.ProviderKind, p *stubProvider) providers.Registration {
	return providers.Registration{
		Kind: kind,
		New: func(id core.Identity, _ providers.ProviderOptions) (core.Provider, error) {
			p.mu.Lock()
			p.gotID = id
			p.mu.Unlock()
			return p, nil
		},
	}
}

type recordingUsage struct {
	mu      sync.Mutex
	entries []*usage.Entry
}

func (r *recordingUsage) Write(e *usage.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingUsage) Config() usage.Config { return usage.Config{Enabled: true} }
func (r *recordingUsage) Close() error         { return nil }

type testEnv struct {
	srv     *Server
	deps    Deps
	dataDir string
	usage   *recordingUsage
	factory *providers.ProviderFactory
}

func newTestEnv(t *testing.T, cfg *Config, regs ...providers.Registration) *testEnv {
	t.Helper()
	dir := t.TempDir()

	factory := providers.NewProviderFactory()
	for _, r := range regs {
		factory.Add(r)
	}
	rec := &recordingUsage{}
	deps := Deps{
		Factory:   factory,
		Catalog:   catalog.New(factory, nil),
		Documents: documents.NewStore(filepath.Join(dir, "data")),
		Keys:      keystore.NewStore(filepath.Join(dir, ".env")),
		Providers: providerstore.NewStore(filepath.Join(dir, "providers.json")),
		Usage:     rec,
	}
	return &testEnv{
		srv:     New(deps, cfg),
		deps:    deps,
		dataDir: filepath.Join(dir, "data"),
		usage:   rec,
		factory: factory,
	}
}

func (e *testEnv) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/lpsn-scraper/internal/config"
	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
	"github.com/JakeFAU/lpsn-scraper/internal/lpsn"
)

func TestServer_ListBacteria_ReturnsRecords(t *testing.T) {
	t.Parallel()

	strain := "ATCC 11775"
	lister := &fakeLister{records: []lpsn.Species{
		{ID: "123", Name: "Escherichia coli", Strain: &strain, Refs: []string{}, Synonyms: []string{}},
	}}
	server := newTestServer(lister)

	req := httptest.NewRequest(http.MethodGet, "/bateriae?word=escherichia", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, []string{"escherichia"}, lister.words())

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "123", got[0]["id"])
	assert.Equal(t, "ATCC 11775", got[0]["strain"])
	assert.NotContains(t, got[0], "author")
	assert.Equal(t, []any{}, got[0]["refs"])
}

func TestServer_ListBacteria_EmptyResultIsEmptyArray(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeLister{})
	req := httptest.NewRequest(http.MethodGet, "/bateriae?word=zzzz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_ListBacteria_MissingWordSearchesEmpty(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{}
	server := newTestServer(lister)
	req := httptest.NewRequest(http.MethodGet, "/bateriae", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{""}, lister.words())
}

func TestServer_ListBacteria_UpstreamFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "status error",
			err:    fmt.Errorf("species %q: %w", "124", &crawler.StatusError{URL: "https://lpsn.test/species/124", StatusCode: 500}),
			status: http.StatusBadGateway,
		},
		{
			name:   "parse error",
			err:    fmt.Errorf("search: %w", crawler.ErrParse),
			status: http.StatusBadGateway,
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("%w: %w", crawler.ErrFetch, context.DeadlineExceeded),
			status: http.StatusGatewayTimeout,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(&fakeLister{err: tc.err})
			req := httptest.NewRequest(http.MethodGet, "/bateriae?word=coli", nil)
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.err.Error(), body["error"])
		})
	}
}

func TestServer_UnknownPathIsNotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeLister{})
	req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not found", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeLister{})
	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, path)
		require.JSONEq(t, fmt.Sprintf(`{"status":%q}`, want), rec.Body.String())
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeLister{})
	// Hit an instrumented route first so the request counters exist.
	server.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_RequestTimeout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.RequestTimeoutSeconds = 1
	lister := &fakeLister{block: true}
	server := NewServer(lister, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/bateriae?word=coli", nil)
	rec := httptest.NewRecorder()
	start := time.Now()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeLister{panics: true})
	req := httptest.NewRequest(http.MethodGet, "/bateriae?word=coli", nil)
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() { server.Handler().ServeHTTP(rec, req) })
}

func TestServer_EndToEndWithScraper(t *testing.T) {
	t.Parallel()

	fetcher := pageFetcher{
		"https://lpsn.test/search?word=coli": `<html><body>
			<a href="/species/123">Escherichia coli</a>
		</body></html>`,
		"https://lpsn.test/species/123": `<html><body><div id="detail-page">
			<p>Name: "Escherichia coli" (Migula 1895) Castellani and Chalmers 1919</p>
			<p>Etymology: foo.</p>
		</div></body></html>`,
	}
	scraper, err := lpsn.New(lpsn.Config{BaseURL: "https://lpsn.test", Concurrency: 2}, fetcher, zap.NewNop())
	require.NoError(t, err)
	server := NewServer(scraper, testConfig(), zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bateriae?word=coli", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{
		"id": "123",
		"name": "Escherichia coli",
		"author": "(Migula 1895) Castellani and Chalmers 1919",
		"etymology": "foo.",
		"refs": [],
		"synonyms": []
	}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bateriae?word=none", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	newTestServer(&fakeLister{}).Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDMiddlewareKeepsIncomingID(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	newTestServer(&fakeLister{}).Handler().ServeHTTP(rec, req)

	require.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type fakeLister struct {
	mu      sync.Mutex
	records []lpsn.Species
	err     error
	block   bool
	panics  bool
	seen    []string
}

func (f *fakeLister) List(ctx context.Context, word string) ([]lpsn.Species, error) {
	f.mu.Lock()
	f.seen = append(f.seen, word)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.records, f.err
}

func (f *fakeLister) words() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

type pageFetcher map[string]string

func (p pageFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	body, ok := p[req.URL]
	if !ok {
		return crawler.FetchResponse{}, &crawler.StatusError{URL: req.URL, StatusCode: http.StatusNotFound}
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:                  8080,
			RequestTimeoutSeconds: 30,
		},
		Logging: config.LoggingConfig{Development: true},
	}
}

func newTestServer(lister Lister) *Server {
	return NewServer(lister, testConfig(), zap.NewNop())
}


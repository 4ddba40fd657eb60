// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/lpsn-scraper/internal/app"
	"github.com/JakeFAU/lpsn-scraper/internal/config"
	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
	"github.com/JakeFAU/lpsn-scraper/internal/fetcher/retry"
)

const testBaseURL = "https://lpsn.test"

// flakyFetcher serves canned pages and fails the first failures calls per URL
// with a 503.
type flakyFetcher struct {
	pages    map[string]string
	failures int

	mu    sync.Mutex
	calls map[string]int
}

func (f *flakyFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[req.URL]++
	n := f.calls[req.URL]
	f.mu.Unlock()

	if n <= f.failures {
		return crawler.FetchResponse{}, &crawler.StatusError{URL: req.URL, StatusCode: http.StatusServiceUnavailable}
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return crawler.FetchResponse{}, &crawler.StatusError{URL: req.URL, StatusCode: http.StatusNotFound}
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *flakyFetcher) callsFor(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Upstream.BaseURL = testBaseURL
	cfg.HTTP.BackoffInitialMs = 1
	cfg.HTTP.BackoffMaxMs = 2
	return cfg
}

func testPages() map[string]string {
	return map[string]string{
		testBaseURL + "/search?word=coli": `<a href="/species/123">Escherichia coli</a>`,
		testBaseURL + "/species/123": `<div id="detail-page">
			<p>Name: "Escherichia coli" (Migula 1895) Castellani and Chalmers 1919</p>
			<p>Type strain: ATCC 11775</p>
		</div>`,
	}
}

func TestNew_Success(t *testing.T) {
	a, err := app.New(context.Background(), testConfig(t), app.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.GetLogger())
	assert.NotNil(t, a.GetScraper())
	assert.IsType(t, &retry.Fetcher{}, a.GetFetcher())
	assert.Equal(t, testBaseURL, a.Config().Upstream.BaseURL)
}

func TestNew_BuildsLoggerFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Development = false
	cfg.Logging.Level = "warn"

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.False(t, a.GetLogger().Core().Enabled(zap.InfoLevel))
	assert.True(t, a.GetLogger().Core().Enabled(zap.WarnLevel))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0

	a, err := app.New(context.Background(), cfg, app.WithLogger(zap.NewNop()))
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNew_InvalidLogLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Level = "chatty"

	_, err := app.New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestApp_ListThroughInjectedFetcher(t *testing.T) {
	fetcher := &flakyFetcher{pages: testPages()}
	a, err := app.New(context.Background(), testConfig(t),
		app.WithLogger(zap.NewNop()),
		app.WithFetcher(fetcher),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	records, err := a.GetScraper().List(context.Background(), "coli")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Strain)
	assert.Equal(t, "ATCC 11775", *records[0].Strain)
}

func TestApp_RetriesTransientUpstreamFailures(t *testing.T) {
	fetcher := &flakyFetcher{pages: testPages(), failures: 1}
	cfg := testConfig(t)
	cfg.HTTP.MaxRetries = 2

	a, err := app.New(context.Background(), cfg,
		app.WithLogger(zap.NewNop()),
		app.WithFetcher(fetcher),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	records, err := a.GetScraper().List(context.Background(), "coli")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, fetcher.callsFor(testBaseURL+"/species/123"))
}

func TestApp_GivesUpAfterMaxRetries(t *testing.T) {
	fetcher := &flakyFetcher{pages: testPages(), failures: 10}
	cfg := testConfig(t)
	cfg.HTTP.MaxRetries = 1

	a, err := app.New(context.Background(), cfg,
		app.WithLogger(zap.NewNop()),
		app.WithFetcher(fetcher),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	_, err = a.GetScraper().List(context.Background(), "coli")
	require.Error(t, err)

	var statusErr *crawler.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, 2, fetcher.callsFor(testBaseURL+"/search?word=coli"))
}

func TestApp_WithRateLimitAndTracing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upstream.RateLimitRPS = 1000
	cfg.Upstream.RateLimitBurst = 5
	cfg.Tracing.Enabled = true

	a, err := app.New(context.Background(), cfg,
		app.WithLogger(zap.NewNop()),
		app.WithFetcher(&flakyFetcher{pages: testPages()}),
	)
	require.NoError(t, err)

	records, err := a.GetScraper().List(context.Background(), "coli")
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NotPanics(t, a.Close)
}

func TestNew_HeadlessFallbackChain(t *testing.T) {
	for _, always := range []bool{false, true} {
		cfg := testConfig(t)
		cfg.Headless.Enabled = true
		cfg.Headless.Always = always

		// The browser starts lazily, so building the chain needs no Chrome.
		a, err := app.New(context.Background(), cfg, app.WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.IsType(t, &retry.Fetcher{}, a.GetFetcher())
		require.NotPanics(t, a.Close)
	}
}

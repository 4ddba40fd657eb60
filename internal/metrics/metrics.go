// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var (
	upstreamFetchesTotal          *prometheus.CounterVec
	upstreamBytesTotal            *prometheus.CounterVec
	upstreamFetchDurationSeconds  *prometheus.HistogramVec
	upstreamRetriesTotal          *prometheus.CounterVec
	speciesScrapedTotal           *prometheus.CounterVec
	searchResults                 prometheus.Histogram
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	upstreamRateLimitDelaySeconds *prometheus.HistogramVec
	headlessPromotionsTotal       *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpsn_upstream_fetches_total",
				Help: "Total number of upstream page fetches, labeled by page kind and outcome code.",
			},
			[]string{"kind", "code"},
		)

		upstreamBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpsn_upstream_bytes_total",
				Help: "Total number of bytes fetched from the upstream, labeled by page kind.",
			},
			[]string{"kind"},
		)

		upstreamFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lpsn_upstream_fetch_duration_seconds",
				Help:    "Histogram of upstream fetch latencies, labeled by page kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		)

		upstreamRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpsn_upstream_retries_total",
				Help: "Total number of upstream fetch retries, labeled by page kind.",
			},
			[]string{"kind"},
		)

		speciesScrapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpsn_species_scraped_total",
				Help: "Total number of species detail pages scraped, labeled by status.",
			},
			[]string{"status"},
		)

		searchResults = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lpsn_search_results",
				Help:    "Histogram of species matches per search.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)

		upstreamRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lpsn_upstream_rate_limit_delay_seconds",
				Help:    "Histogram of upstream rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		headlessPromotionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpsn_headless_promotions_total",
				Help: "Total number of static fetches re-run in the headless browser.",
			},
			[]string{"kind", "status"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstreamFetch records one upstream fetch. code is the HTTP status,
// or 0 when no response was received.
func ObserveUpstreamFetch(kind string, code int, bytesFetched int, duration time.Duration) {
	Init()
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	upstreamFetchesTotal.WithLabelValues(kind, label).Inc()
	if bytesFetched > 0 {
		upstreamBytesTotal.WithLabelValues(kind).Add(float64(bytesFetched))
	}
	upstreamFetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveRetry increments the retry counter for a page kind.
func ObserveRetry(kind string) {
	Init()
	upstreamRetriesTotal.WithLabelValues(kind).Inc()
}

// ObserveSpecies increments the species counter for the given status.
func ObserveSpecies(status string) {
	Init()
	speciesScrapedTotal.WithLabelValues(status).Inc()
}

// ObserveSearchResults records how many species a search matched.
func ObserveSearchResults(matches int) {
	Init()
	searchResults.Observe(float64(matches))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	upstreamRateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHeadlessPromotion records a headless re-fetch and whether it worked.
func ObserveHeadlessPromotion(kind, status string) {
	Init()
	headlessPromotionsTotal.WithLabelValues(kind, status).Inc()
}

package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Limiter blocks until a request to rawURL may proceed.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// RetryPolicy decides whether and when a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// HeadlessDetector decides whether a static response must be fetched again
// in a headless browser.
type HeadlessDetector interface {
	ShouldPromote(request FetchRequest, resp FetchResponse) bool
}

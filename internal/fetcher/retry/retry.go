// Package retry decorates a crawler.Fetcher with retries and an optional
// upstream limiter.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
	"github.com/JakeFAU/lpsn-scraper/internal/metrics"
)

// Fetcher retries transient failures of the wrapped fetcher.
type Fetcher struct {
	next    crawler.Fetcher
	policy  crawler.RetryPolicy
	limiter crawler.Limiter
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter makes every attempt wait on limiter first.
func WithLimiter(limiter crawler.Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = limiter
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New wraps next. A nil policy disables retries.
func New(next crawler.Fetcher, policy crawler.RetryPolicy, opts ...Option) *Fetcher {
	f := &Fetcher{
		next:   next,
		policy: policy,
		logger: zap.NewNop(),
		sleep:  sleepWithContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch calls the wrapped fetcher until it succeeds, the policy gives up or
// ctx is done. The returned response reports the attempts used.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, request.URL); err != nil {
				return crawler.FetchResponse{}, fmt.Errorf("wait for upstream slot: %w", err)
			}
		}

		resp, err := f.next.Fetch(ctx, request)
		if err == nil {
			resp.Attempts = attempt
			return resp, nil
		}
		if f.policy == nil || !f.policy.ShouldRetry(err, attempt) {
			if attempt > 1 {
				return crawler.FetchResponse{}, fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return crawler.FetchResponse{}, err
		}

		delay := f.policy.Backoff(attempt)
		metrics.ObserveRetry(string(request.Kind))
		f.logger.Info("retrying upstream fetch",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return crawler.FetchResponse{}, err
		}
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry backoff canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

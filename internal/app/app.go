// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/lpsn-scraper/internal/config"
	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
	collyfetcher "github.com/JakeFAU/lpsn-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/lpsn-scraper/internal/fetcher/fallback"
	headlessfetcher "github.com/JakeFAU/lpsn-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/lpsn-scraper/internal/fetcher/retry"
	"github.com/JakeFAU/lpsn-scraper/internal/headless/detector"
	"github.com/JakeFAU/lpsn-scraper/internal/logging"
	"github.com/JakeFAU/lpsn-scraper/internal/lpsn"
	"github.com/JakeFAU/lpsn-scraper/internal/metrics"
	"github.com/JakeFAU/lpsn-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/lpsn-scraper/internal/telemetry"
)

// App holds the shared, long-lived services of the process: the logger, the
// upstream fetcher chain and the LPSN scraper built on top of it.
// It is initialized once at startup and closed on exit.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher crawler.Fetcher
	scraper *lpsn.Scraper

	closers []func(context.Context) error
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	fetcher crawler.Fetcher
}

// WithLogger uses logger instead of building one from the logging config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithFetcher replaces the base page fetcher. Retries and rate limiting are
// still layered on top of it.
func WithFetcher(fetcher crawler.Fetcher) Option {
	return func(o *options) {
		o.fetcher = fetcher
	}
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetScraper returns the LPSN scraper.
func (a *App) GetScraper() *lpsn.Scraper {
	return a.scraper
}

// GetFetcher returns the outermost fetcher used by the scraper.
func (a *App) GetFetcher() crawler.Fetcher {
	return a.fetcher
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// New validates cfg and builds every service. It fails fast if any of them
// cannot be initialized.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: o.logger}
	if a.logger == nil {
		logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.logger = logger
	}
	a.logger.Info("initializing application services")
	metrics.Init()

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	base := o.fetcher
	if base == nil {
		base, err = a.newBaseFetcher()
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.Upstream.RateLimitRPS,
		Burst: cfg.Upstream.RateLimitBurst,
	})
	initial, maxDelay := cfg.Backoff()
	retryOpts := []retry.Option{retry.WithLogger(a.logger.Named("fetch"))}
	if limiter.Enabled() {
		a.logger.Info("upstream rate limit enabled",
			zap.Float64("rps", cfg.Upstream.RateLimitRPS),
			zap.Int("burst", cfg.Upstream.RateLimitBurst),
		)
		retryOpts = append(retryOpts, retry.WithLimiter(limiter))
	}
	a.fetcher = retry.New(
		base,
		crawler.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, initial, maxDelay),
		retryOpts...,
	)

	a.scraper, err = lpsn.New(lpsn.Config{
		BaseURL:      cfg.Upstream.BaseURL,
		Concurrency:  cfg.Crawler.Concurrency,
		FetchTimeout: cfg.FetchTimeout(),
	}, a.fetcher, a.logger.Named("lpsn"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init scraper: %w", err)
	}

	a.logger.Info("application services initialized",
		zap.String("base_url", cfg.Upstream.BaseURL),
		zap.Bool("headless", cfg.Headless.Enabled && o.fetcher == nil),
		zap.Int("concurrency", cfg.Crawler.Concurrency),
	)
	return a, nil
}

func (a *App) newBaseFetcher() (crawler.Fetcher, error) {
	cfg := a.cfg
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Upstream.UserAgent,
		RespectRobots: cfg.Upstream.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
		MaxBodySize:   cfg.Upstream.MaxBodyBytes,
	}, a.logger.Named("colly"))
	if !cfg.Headless.Enabled {
		return static, nil
	}

	browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Upstream.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout(),
		ReadySelector:     cfg.Headless.ReadySelector,
	}, a.logger.Named("headless"))
	if err != nil {
		return nil, fmt.Errorf("init headless fetcher: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		browser.Close()
		return nil
	})
	if cfg.Headless.Always {
		return browser, nil
	}
	return fallback.New(
		static,
		browser,
		detector.NewHeuristic(cfg.Headless.PromotionThreshold),
		a.logger.Named("fallback"),
	), nil
}

// Close releases every service in reverse order of creation and flushes the
// logger.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
	}
	// Syncing stderr fails on some platforms; nothing useful can be done.
	_ = a.logger.Sync()
}

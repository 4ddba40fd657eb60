// Package fallback fetches pages statically and re-fetches them in a
// headless browser when the static response looks like a script shell.
package fallback

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
	"github.com/JakeFAU/lpsn-scraper/internal/metrics"
)

// Fetcher promotes static responses to a headless fetch when the detector
// asks for it.
type Fetcher struct {
	static   crawler.Fetcher
	headless crawler.Fetcher
	detector crawler.HeadlessDetector
	logger   *zap.Logger
}

// New builds a Fetcher. With a nil headless fetcher or detector it behaves
// exactly like static.
func New(static, headless crawler.Fetcher, detector crawler.HeadlessDetector, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		static:   static,
		headless: headless,
		detector: detector,
		logger:   logger,
	}
}

// Fetch returns the static response unless it gets promoted. A failed
// promotion keeps the static response.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	resp, err := f.static.Fetch(ctx, request)
	if err != nil {
		return crawler.FetchResponse{}, err
	}
	if f.headless == nil || f.detector == nil || !f.detector.ShouldPromote(request, resp) {
		return resp, nil
	}

	f.logger.Info("headless promotion applied", zap.String("url", request.URL))
	rendered, err := f.headless.Fetch(ctx, request)
	if err != nil {
		metrics.ObserveHeadlessPromotion(string(request.Kind), metrics.StatusFailed)
		if ctx.Err() != nil {
			return crawler.FetchResponse{}, ctx.Err()
		}
		f.logger.Warn("headless promotion failed", zap.String("url", request.URL), zap.Error(err))
		return resp, nil
	}
	metrics.ObserveHeadlessPromotion(string(request.Kind), metrics.StatusSucceeded)
	rendered.UsedHeadless = true
	return rendered, nil
}

package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
	"github.com/JakeFAU/lpsn-scraper/internal/headless/detector"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(crawler.FetchResponse)
	return resp, args.Error(1)
}

var speciesRequest = crawler.FetchRequest{URL: "https://lpsn.test/species/1", Kind: crawler.PageKindSpecies}

func TestFetch_StaticPageIsKept(t *testing.T) {
	t.Parallel()

	static := &MockFetcher{}
	headless := &MockFetcher{}
	static.On("Fetch", mock.Anything, speciesRequest).Return(crawler.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<div id="detail-page"><p>Etymology: foo.</p></div>`),
	}, nil).Once()

	f := New(static, headless, detector.NewHeuristic(0), nil)
	resp, err := f.Fetch(context.Background(), speciesRequest)
	require.NoError(t, err)
	require.False(t, resp.UsedHeadless)
	static.AssertExpectations(t)
	headless.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestFetch_ShellIsPromoted(t *testing.T) {
	t.Parallel()

	static := &MockFetcher{}
	headless := &MockFetcher{}
	static.On("Fetch", mock.Anything, speciesRequest).Return(crawler.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<div id="__next"></div>`),
	}, nil).Once()
	headless.On("Fetch", mock.Anything, speciesRequest).Return(crawler.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<div id="detail-page"></div>`),
	}, nil).Once()

	f := New(static, headless, detector.NewHeuristic(0), nil)
	resp, err := f.Fetch(context.Background(), speciesRequest)
	require.NoError(t, err)
	require.True(t, resp.UsedHeadless)
	require.Contains(t, string(resp.Body), "detail-page")
	headless.AssertExpectations(t)
}

func TestFetch_FailedPromotionKeepsStatic(t *testing.T) {
	t.Parallel()

	static := &MockFetcher{}
	headless := &MockFetcher{}
	static.On("Fetch", mock.Anything, speciesRequest).Return(crawler.FetchResponse{
		StatusCode: 200,
		Body:       []byte(""),
	}, nil).Once()
	headless.On("Fetch", mock.Anything, speciesRequest).Return(crawler.FetchResponse{}, errors.New("chrome missing")).Once()

	f := New(static, headless, detector.NewHeuristic(0), nil)
	resp, err := f.Fetch(context.Background(), speciesRequest)
	require.NoError(t, err)
	require.False(t, resp.UsedHeadless)
	require.Equal(t, 200, resp.StatusCode)
}

func TestFetch_StaticErrorIsReturned(t *testing.T) {
	t.Parallel()

	static := &MockFetcher{}
	statusErr := &crawler.StatusError{URL: speciesRequest.URL, StatusCode: 404}
	static.On("Fetch", mock.Anything, speciesRequest).Return(crawler.FetchResponse{}, statusErr).Once()

	f := New(static, &MockFetcher{}, detector.NewHeuristic(0), nil)
	_, err := f.Fetch(context.Background(), speciesRequest)
	require.ErrorIs(t, err, crawler.ErrFetch)
}

func TestFetch_WithoutHeadlessIsPassThrough(t *testing.T) {
	t.Parallel()

	static := &MockFetcher{}
	static.On("Fetch", mock.Anything, speciesRequest).Return(crawler.FetchResponse{StatusCode: 200}, nil).Once()

	f := New(static, nil, detector.NewHeuristic(0), nil)
	resp, err := f.Fetch(context.Background(), speciesRequest)
	require.NoError(t, err)
	require.False(t, resp.UsedHeadless)
}

package lpsn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
	"github.com/JakeFAU/lpsn-scraper/internal/document"
	"github.com/JakeFAU/lpsn-scraper/internal/metrics"
)

// DefaultBaseURL is the public LPSN site.
const DefaultBaseURL = "https://lpsn.dsmz.de"

const (
	speciesPathPrefix = "/species/"
	acceptHTML        = "text/html,application/xhtml+xml"
)

var tracer = otel.Tracer("github.com/JakeFAU/lpsn-scraper/internal/lpsn")

// Config controls how the scraper talks to the upstream site.
type Config struct {
	BaseURL string
	// Concurrency caps the species fan-out. Zero or less means unbounded.
	Concurrency int
	// FetchTimeout bounds each upstream page fetch. Zero disables it.
	FetchTimeout time.Duration
}

// Scraper turns LPSN pages into species records.
type Scraper struct {
	cfg     Config
	baseURL string
	fetcher crawler.Fetcher
	logger  *zap.Logger
}

// New builds a Scraper over fetcher.
func New(cfg Config, fetcher crawler.Fetcher, logger *zap.Logger) (*Scraper, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

// SearchURL returns the upstream search page for word.
func (s *Scraper) SearchURL(word string) string {
	return s.baseURL + "/search?word=" + url.QueryEscape(word)
}

// SpeciesURL returns the upstream detail page for id. The id is used as
// extracted from the search page link.
func (s *Scraper) SpeciesURL(id string) string {
	return s.baseURL + speciesPathPrefix + id
}

// List searches for word and scrapes every match concurrently. Records keep
// the order of the search results. If any species fails, List fails and
// returns no records.
func (s *Scraper) List(ctx context.Context, word string) ([]Species, error) {
	ctx, span := tracer.Start(ctx, "lpsn.List", trace.WithAttributes(attribute.String("lpsn.word", word)))
	defer span.End()

	ids, err := s.Search(ctx, word)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	records := make([]Species, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Concurrency > 0 {
		g.SetLimit(s.cfg.Concurrency)
	}
	for i, ident := range ids {
		g.Go(func() error {
			record, err := s.Species(gctx, ident.ID, ident.Name)
			if err != nil {
				return fmt.Errorf("species %q: %w", ident.ID, err)
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordError(span, err)
		s.logger.Warn("species fan-out failed",
			zap.String("word", word),
			zap.Int("matches", len(ids)),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("lpsn.species", len(records)))
	return records, nil
}

// Search returns the species links of the search page for word, in document
// order and without deduplication.
func (s *Scraper) Search(ctx context.Context, word string) ([]Identification, error) {
	ctx, span := tracer.Start(ctx, "lpsn.Search")
	defer span.End()

	doc, err := s.fetchDocument(ctx, crawler.PageKindSearch, s.SearchURL(word))
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("search %q: %w", word, err)
	}

	ids := ParseSearch(doc)
	metrics.ObserveSearchResults(len(ids))
	span.SetAttributes(attribute.Int("lpsn.matches", len(ids)))
	s.logger.Debug("search parsed", zap.String("word", word), zap.Int("matches", len(ids)))
	return ids, nil
}

// Species fetches and parses the detail page of one species. name is the
// display name from the search page and is only used to derive the author.
func (s *Scraper) Species(ctx context.Context, id, name string) (Species, error) {
	ctx, span := tracer.Start(ctx, "lpsn.Species", trace.WithAttributes(attribute.String("lpsn.id", id)))
	defer span.End()

	doc, err := s.fetchDocument(ctx, crawler.PageKindSpecies, s.SpeciesURL(id))
	if err != nil {
		recordError(span, err)
		metrics.ObserveSpecies(metrics.StatusFailed)
		return Species{}, err
	}
	metrics.ObserveSpecies(metrics.StatusSucceeded)
	return ParseSpecies(doc, id, name), nil
}

// ParseSearch extracts the identifications from a search results page.
func ParseSearch(doc *document.Document) []Identification {
	ids := []Identification{}
	for _, anchor := range doc.FindByTag("a") {
		href, ok := anchor.Attr("href")
		if !ok || !strings.HasPrefix(href, speciesPathPrefix) {
			continue
		}
		ids = append(ids, Identification{
			ID:   strings.TrimPrefix(href, speciesPathPrefix),
			Name: strings.TrimSpace(strings.ReplaceAll(anchor.Text(), `"`, "")),
		})
	}
	return ids
}

// ParseSpecies builds the record for a parsed detail page.
func ParseSpecies(doc *document.Document, id, name string) Species {
	record := Species{
		ID:       id,
		Name:     name,
		Refs:     CollectRefs(doc),
		Synonyms: ExtractSynonyms(doc),
	}
	record.Author = optional(ExtractAuthor(doc, name))
	record.Strain = optional(ExtractField(doc, LabelTypeStrain))
	record.SequenceAccessionNo = optional(ExtractAccession(doc))
	record.Etymology = optional(ExtractField(doc, LabelEtymology))
	return record
}

func (s *Scraper) fetchDocument(ctx context.Context, kind crawler.PageKind, rawURL string) (*document.Document, error) {
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}
	resp, err := s.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     rawURL,
		Kind:    kind,
		Headers: requestHeaders(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", crawler.ErrFetch, rawURL, err)
	}
	doc, err := document.ParseBytes(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	return doc, nil
}

// requestHeaders asks for HTML and carries the trace context upstream.
func requestHeaders(ctx context.Context) http.Header {
	headers := http.Header{
		"Accept":          {acceptHTML},
		"Accept-Language": {"en"},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
	return headers
}

func optional(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

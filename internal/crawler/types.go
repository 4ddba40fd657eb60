package crawler

import (
	"net/http"
	"time"
)

// PageKind labels the upstream page a request targets. It is used for
// metrics and tracing only.
type PageKind string

// Upstream page kinds.
const (
	PageKindSearch  PageKind = "search"
	PageKindSpecies PageKind = "species"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Kind    PageKind
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
	Attempts     int
}

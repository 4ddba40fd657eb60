// Package detector decides when a statically fetched LPSN page has to be
// fetched again in a headless browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/lpsn-scraper/internal/crawler"
)

// DefaultBodyLengthThreshold is the body size under which a script-heavy
// page is treated as a shell.
const DefaultBodyLengthThreshold = 2048

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector. A threshold of zero or less uses
// DefaultBodyLengthThreshold.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultBodyLengthThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// detailPageMarker proves a species page was rendered server side.
var detailPageMarker = []byte(`id="detail-page"`)

// Interstitials and client-rendered shells served instead of content.
var shellMarkers = [][]byte{
	[]byte("challenge-platform"),
	[]byte("cf-browser-verification"),
	[]byte("please enable javascript"),
	[]byte("__next"),
	[]byte("data-reactroot"),
}

// ShouldPromote reports whether resp looks like a page that only renders in
// a browser. Non-200 responses are never promoted.
func (h *Heuristic) ShouldPromote(request crawler.FetchRequest, resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	if request.Kind == crawler.PageKindSpecies && bytes.Contains(body, detailPageMarker) {
		return false
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range shellMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether <script> elements cover at least a
// quarter of the document.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			// Unterminated tag: the rest of the document is script.
			coverage += total - start
			break
		}
		contentStart := start + tagEnd + 1

		next := total
		if end := strings.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		coverage += next - start
		pos = next
	}
	return coverage*100/total >= 25
}

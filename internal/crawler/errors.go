package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetch reports that an upstream page could not be retrieved.
	ErrFetch = errors.New("fetch failed")
	// ErrParse reports that an upstream page could not be parsed into a document.
	ErrParse = errors.New("parse failed")
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Unwrap lets errors.Is(err, ErrFetch) match status failures.
func (e *StatusError) Unwrap() error {
	return ErrFetch
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

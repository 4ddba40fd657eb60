// Package crawler defines the fetch contracts shared by the upstream fetchers,
// the retry and rate limiting decorators, and the LPSN scraper.
package crawler

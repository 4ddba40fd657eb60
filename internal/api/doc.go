// Package api hosts the HTTP server and middleware. Routes:
//   - GET /bateriae?word=... scrapes LPSN and returns the species records.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//
// Every other path answers 404 with a plain "not found" body.
package api

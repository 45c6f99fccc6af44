// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Question submission, asynchronous and synchronous
//   - Run status, results, cancellation and downloads
//   - The pipeline transition table
//   - Health checks
//   - Prometheus metrics
package http

// Package catalog is the HTTP/JSON client for the remote ROM metadata
// catalog (a CrocDB-compatible API).
//
// The client is deliberately thin: it translates requests and responses,
// paces calls with a token bucket, retries transient failures, and trips a
// circuit breaker when the upstream keeps failing. Caching, ranking, and
// pagination policy live in the search package.
//
// Errors are classified with the services markers: a missing entry reports
// services.ErrNotFound, while exhausted retries, unexpected statuses, and an
// open breaker report services.ErrUpstreamUnavailable.
package catalog

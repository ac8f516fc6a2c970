// Package services defines shared utilities consumed by the catalog, cache,
// search, and download components.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, session IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that give every failure a
//     stable taxonomy (not found, ambiguous reference, upstream unavailable,
//     mirror exhaustion, integrity mismatch, cancellation).
//   - Kind and Summary, which flatten errors for the history ledger and CLI.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability, retries) stays uniform across the client.
package services

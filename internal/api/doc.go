// Package api is the boundary between romgrab's internals and the
// presentation layer. It wires the catalog client, cache, search engine,
// download manager, and history ledger into a Service, and translates their
// models into transport-friendly DTOs the CLI can print as tables or JSON
// without coupling to internal types.
//
// # Key Types
//
// Service: owns one set of collaborators. Open builds them from
// configuration; New accepts prebuilt ones for tests.
//
// SearchResponse/SearchResult: a ranked page with the 1-based session index
// of every result.
//
// TaskResult: the terminal state of a download, with its companion boxart
// task when one ran.
//
// HistoryRecord: one ledger row.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Sessions are created by the caller and passed to every operation that
// reads or replaces the active result set; the Service itself keeps no
// per-caller state.
package api

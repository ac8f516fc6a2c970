// Package history persists the download ledger in SQLite.
//
// The ledger is append-only: triggers reject UPDATE and DELETE so rows can
// only accumulate. Queries stream rows most recent first through an
// iterator, and the whole ledger can be exported as CSV, TSV, JSON, or YAML.
package history

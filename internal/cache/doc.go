// Package cache stores catalog responses and thumbnails with per-namespace
// time-to-live.
//
// Expiry is lazy: a record is checked on read and evicted when
// now - created_at >= ttl. A record that cannot be read or decoded is treated
// as a miss and evicted, never surfaced as an error. Concurrent GetOrFetch
// calls for the same key share a single upstream fetch.
//
// Three backends persist records across process invocations: the filesystem
// (via afero, the default), an embedded badger database, and redis.
package cache

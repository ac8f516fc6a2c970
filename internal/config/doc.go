// Package config loads, normalizes, and validates romgrab configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// ROMGRAB_API_URL. Unknown keys in the file are rejected. The Config type
// centralizes every knob the CLI and library need so the catalog client, cache,
// search engine, and download manager are configured in one pass.
package config

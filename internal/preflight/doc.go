// Package preflight provides readiness checks for the directories and
// remote services romgrab depends on.
//
// The CLI "romgrab status" command runs RunAll and prints one line per check.
// Checks never fail hard: each returns a Result with a human-readable detail
// so a single unreachable service does not hide the others.
//
// Remote checks use short timeouts and a single attempt (no retries).
package preflight

// Package download resolves ROM references and drives each download through
// an explicit state machine:
//
//	pending -> probing -> transferring -> verifying -> completed
//
// with a retry edge back to transferring and terminal failed and cancelled
// states. Transfers use parallel byte ranges when the mirror supports them,
// reassemble the ranges in order, verify size and hash, and place the file
// under <rom_dir>/<platform>/. Every terminal task is appended to the history
// ledger exactly once.
package download

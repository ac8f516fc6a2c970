// Package textutil provides text processing utilities for title matching and
// filename sanitization.
//
// The primary use cases are:
//   - Normalizing titles (accent folding, lowercasing, punctuation removal)
//   - Token fingerprints with cosine similarity and edit-distance ratios
//   - Sanitizing filenames and path segments for safe filesystem use
package textutil

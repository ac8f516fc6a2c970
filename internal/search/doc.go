// Package search runs catalog queries through the response cache, ranks the
// combined results by title relevance, and keeps the last ranked result set
// per caller session so later commands can refer to "item N".
package search

package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks, so "Pokémon" becomes "Pokemon".
func FoldAccents(text string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		return text
	}
	return folded
}

// Normalize folds accents, lowercases, and collapses every run of
// non-alphanumeric characters into a single space.
func Normalize(text string) string {
	folded := FoldAccents(text)
	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// CountBrackets returns the number of (), [] and {} characters in text.
// Titles heavy with bracketed tags are usually hacks or translations.
func CountBrackets(text string) int {
	n := 0
	for _, r := range text {
		switch r {
		case '(', ')', '[', ']', '{', '}':
			n++
		}
	}
	return n
}

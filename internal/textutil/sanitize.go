package textutil

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxFileNameBytes keeps names well under the 255-byte limit of common
	// filesystems, leaving room for the ".part" suffix used during transfers.
	MaxFileNameBytes = 200
	maxTokenBytes    = 64
)

// SafeFileName turns a mirror-provided name into one that is safe to create
// inside a platform directory. Accents are folded, path separators and
// reserved characters become dashes, control characters are dropped, and
// leading dots are stripped so the result is never ".", ".." or hidden.
// Long names are shortened with the extension kept. The result is empty when
// nothing usable remains.
func SafeFileName(name string) string {
	var b strings.Builder
	for _, r := range FoldAccents(name) {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '|':
			b.WriteByte('-')
		case r == '?' || r == '"' || r == '<' || r == '>':
		case unicode.IsControl(r) || r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(strings.TrimSpace(b.String()), ". ")
	out = strings.TrimRight(out, ". ")
	if out == "" {
		return ""
	}
	return clip(out, MaxFileNameBytes)
}

// PathToken reduces value to a lowercase ASCII token for directory and
// fallback file names: letters and digits are kept, runs of anything else
// collapse into a single underscore. Empty input yields "unknown".
func PathToken(value string) string {
	var b strings.Builder
	gap := false
	for _, r := range strings.ToLower(FoldAccents(value)) {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			gap = false
			b.WriteRune(r)
		default:
			gap = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > maxTokenBytes {
		out = strings.TrimRight(out[:maxTokenBytes], "_-")
	}
	if out == "" {
		return "unknown"
	}
	return out
}

// clip shortens name to at most limit bytes on a rune boundary, keeping a
// short extension intact.
func clip(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if len(ext) > 16 {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	budget := limit - len(ext)
	for budget > 0 && !utf8.RuneStart(stem[budget]) {
		budget--
	}
	return strings.TrimRight(stem[:budget], ". ") + ext
}

package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FileToken converts a graph id or label to a lowercase ASCII token for use in
// derived file names. Diacritics are stripped, letters and digits kept, hyphens
// and underscores preserved, and everything else becomes an underscore.
// Returns "graph" for input with no usable characters.
func FileToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "graph"
	}
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		stripped = value
	}
	var b strings.Builder
	for _, r := range NormalizeCase(stripped) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "graph"
	}
	return out
}

// NormalizeCase case-folds s without removing any characters.
func NormalizeCase(s string) string {
	return cases.Fold().String(s)
}

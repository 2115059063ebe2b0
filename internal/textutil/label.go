package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"agmerge/internal/editpath"
)

// ShortLabelLength is the longest label, in runes, treated as short.
const ShortLabelLength = 2

// ShortLabelMagnifier scales the distance between labels when either is short.
const ShortLabelMagnifier = 3

// IPAType is the layer type whose labels are compared verbatim.
const IPAType = "ipa"

// short labels pay double for a substitution
var shortCosts = editpath.Costs{Insert: 1, Delete: 1, Change: 2}

// NormalizeLabel case-folds and composes label and drops everything that is
// not a letter or a digit.
func NormalizeLabel(label string) string {
	folded := norm.NFC.String(cases.Fold().String(label))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LabelDistance returns the edit distance between two labels of a layer of
// type layerType. Normalized forms are compared unless either normalizes to
// nothing or the layer holds phonemic (IPA) labels, where punctuation-like
// symbols are significant.
func LabelDistance(from, to, layerType string) int {
	if from == to {
		return 0
	}
	f, t := NormalizeLabel(from), NormalizeLabel(to)
	if f == "" || t == "" || layerType == IPAType {
		f, t = from, to
	}
	if f == t {
		return 0
	}
	if !isShort(f) && !isShort(t) {
		return editpath.Levenshtein(f, t)
	}
	cmp := &editpath.DefaultComparator[rune]{
		Equal: func(a, b rune) bool { return a == b },
		Costs: shortCosts,
	}
	return editpath.Distance([]rune(f), []rune(t), cmp) * ShortLabelMagnifier
}

func isShort(label string) bool {
	return utf8.RuneCountInString(label) <= ShortLabelLength
}

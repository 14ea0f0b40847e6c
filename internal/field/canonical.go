package field

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, removes combining marks, and
// recomposes, turning "Müller" into "Muller" and "café" into "cafe".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Canonical computes the identity form of a value: lower-cased,
// diacritic-stripped, punctuation replaced by spaces, whitespace
// collapsed. Two values denote the same entity exactly when their
// canonical forms are equal. The display form is never derived from
// this; it keeps the original casing.
func Canonical(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return CollapseSpace(b.String())
}

// Package identity implements the name normalization ("idstr") rules
// every name-based lookup in the system relies on: lowercase, strip
// whitespace, and fold away combining marks so that a name typed with
// diacritics collapses to the same idstr across implementations.
package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripCombiningMarks removes Unicode combining marks from NFD-decomposed
// text, leaving the base character behind (é -> e). This is the Go
// stand-in for the reference implementation's UNIDATA folding table: a
// name typed with a diacritic normalizes identically to its bare form.
var stripCombiningMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize computes the idstr for a display name: diacritics folded to
// their base character, whitespace removed entirely, and the result
// lowercased. Normalize is idempotent: Normalize(Normalize(s)) ==
// Normalize(s), since the output already contains no whitespace or
// combining marks and is already lowercase.
func Normalize(name string) string {
	folded, _, err := transform.String(stripCombiningMarks, name)
	if err != nil {
		// Malformed input: fall back to folding what we have rather than
		// failing a lookup key computation outright.
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

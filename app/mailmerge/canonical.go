// Package mailmerge turns uploaded spreadsheets into recipient records and
// substitutes per-recipient values into campaign templates.
package mailmerge

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var dStroke = strings.NewReplacer("đ", "d", "Đ", "d")

// Canonicalize folds a column or variable name into a lookup key made of
// [a-z0-9] runs joined by single underscores. Vietnamese diacritics fold to
// their base letters. Distinct names may fold to the same key.
func Canonicalize(name string) string {
	s := strings.TrimSpace(strings.ToLower(name))
	s = dStroke.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

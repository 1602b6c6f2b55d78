// Package slug derives stable filesystem- and URL-safe names from display
// titles. Targets are predominantly Turkish, so the dotless ı and friends are
// folded explicitly before generic diacritic stripping.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// turkish folds the characters that NFD decomposition does not reduce to
// ASCII. ı (U+0131) has no combining form; İ lowers to i̇ which would leave
// a stray combining dot.
var turkish = strings.NewReplacer(
	"ı", "i", "İ", "i",
	"ş", "s", "Ş", "s",
	"ğ", "g", "Ğ", "g",
	"ç", "c", "Ç", "c",
	"ö", "o", "Ö", "o",
	"ü", "u", "Ü", "u",
)

// stripMarks removes combining marks left after NFD decomposition, so é → e,
// â → a and similar for any remaining accented input.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make returns the slug for title: lowercase ASCII words joined by single
// dashes, with everything outside [a-z0-9-] dropped. Empty input (or input
// with no usable characters) yields "".
func Make(title string) string {
	s := turkish.Replace(strings.TrimSpace(title))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	prevDash := true // suppress leading dash
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

package data

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fingerprint derives the key that identifies a musical work independent of
// which service reported it. Two songs with the same fingerprint are the
// same work: "Björk – Jóga" and "bjork - joga" collapse together, as do
// "Song (Remastered)" and "song  remastered".
func Fingerprint(artist, title string) string {
	return Normalize(artist) + "||" + Normalize(title)
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases, strips diacritics and punctuation, and collapses
// runs of whitespace to a single space. The folding rule is load-bearing:
// the catalog, the lyrics cache, and the vector index all key on it.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

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
		} else {
			pendingSpace = true
		}
	}
	return b.String()
}

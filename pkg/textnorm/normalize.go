// Package textnorm canonicalizes colloquial Persian text so that user
// messages, catalog labels and keyword lists compare equal when a reader
// would consider them the same.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	zeroWidthNonJoiner = '\u200c'
	zeroWidthJoiner    = '\u200d'
	tatweel            = '\u0640'
)

// letterVariants maps visually divergent Arabic code points to the forms
// used in Persian text.
var letterVariants = map[rune]rune{
	'\u064a': '\u06cc', // Arabic yeh -> Persian yeh
	'\u0649': '\u06cc', // alef maksura -> Persian yeh
	'\u0643': '\u06a9', // Arabic kaf -> keheh
}

var stripMarks = transform.Chain(
	runes.Remove(runes.Predicate(func(r rune) bool {
		return r == tatweel || unicode.Is(unicode.Mn, r)
	})),
	norm.NFC,
)

// Normalize converts native digits to ASCII, unifies letter variants,
// collapses zero-width joiners and whitespace runs into a single space and
// trims the result. It never fails and is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	s := norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if r == zeroWidthNonJoiner || r == zeroWidthJoiner || unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(mapRune(r))
	}
	return b.String()
}

// NormalizeQuery applies Normalize, removes diacritics, replaces every rune
// that is not a letter, digit or space with a space and lower-cases the text.
func NormalizeQuery(text string) string {
	s := StripDiacritics(Normalize(text))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// StripDiacritics removes nonspacing marks (harakat) and tatweel.
func StripDiacritics(text string) string {
	if text == "" {
		return ""
	}
	result, _, err := transform.String(stripMarks, text)
	if err != nil {
		return text
	}
	return result
}

// NormalizeAny normalizes string-like input and maps anything else to the
// empty string, so attacker-controlled payloads of the wrong type never
// reach the matcher.
func NormalizeAny(v any) string {
	switch val := v.(type) {
	case string:
		return Normalize(val)
	case []byte:
		return Normalize(string(val))
	default:
		return ""
	}
}

// ToASCIIDigit converts a Persian or Arabic-Indic digit to its ASCII form.
// Other runes are returned unchanged.
func ToASCIIDigit(r rune) rune {
	switch {
	case r >= '\u06f0' && r <= '\u06f9':
		return '0' + (r - '\u06f0')
	case r >= '\u0660' && r <= '\u0669':
		return '0' + (r - '\u0660')
	}
	return r
}

func mapRune(r rune) rune {
	if v, ok := letterVariants[r]; ok {
		return v
	}
	return ToASCIIDigit(r)
}

// Package text provides rune-aware helpers for message length limits. The
// Bot API counts message length in characters, not bytes.
package text

import (
	"unicode/utf8"
)

// CountRunes counts the number of Unicode characters (runes) in the given text.
//
// Examples:
//
//	CountRunes("hello")      // returns 5
//	CountRunes("Парфюм")     // returns 6
//	CountRunes("Hello👋")    // returns 6
//	CountRunes("")           // returns 0
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// TruncateRunes shortens text to at most max runes. When it has to cut, the
// result ends with suffix and still fits within max. A max smaller than the
// suffix yields the first max runes of the suffix.
func TruncateRunes(text string, max int, suffix string) string {
	if max <= 0 {
		return ""
	}
	if CountRunes(text) <= max {
		return text
	}

	suffixLen := CountRunes(suffix)
	if suffixLen >= max {
		return string([]rune(suffix)[:max])
	}

	keep := max - suffixLen
	n := 0
	for i := range text {
		if n == keep {
			return text[:i] + suffix
		}
		n++
	}
	return text + suffix
}

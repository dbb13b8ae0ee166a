// Package text provides the letter text helpers shared by the validation, analysis and CLI
// layers.
package text

import (
	"strings"
	"unicode/utf8"
)

// CountRunes counts the Unicode characters (runes) in text. Letter size limits and the
// degradation size buckets are expressed in runes, not bytes.
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// Normalize converts line endings to \n, drops invalid UTF-8 and trims surrounding space.
func Normalize(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go-kit/strutil"
)

// quoteChars are stripped from both ends of generated titles.
const quoteChars = "\"'“”‘’「」『』`"

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// StripQuotes trims whitespace and surrounding quotation marks.
func StripQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), quoteChars))
}

// CharCount counts characters (runes), not bytes.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}

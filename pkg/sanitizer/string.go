package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims the ends and collapses inner whitespace runs into a
// single space.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeCategory keeps case: listings are filtered by exact category.
func NormalizeCategory(category string) string {
	return TrimAndNormalize(category)
}

// NormalizeMessageBody trims a chat message and drops control characters
// other than line breaks and tabs.
func NormalizeMessageBody(body string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, body)
	return strings.TrimSpace(cleaned)
}

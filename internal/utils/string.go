package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to max runes, appending an ellipsis when trimmed.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// TruncateBytes caps s at max bytes without an ellipsis, for log storage.
func TruncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// NormalizeEmail lowercases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package utils

import "strings"

// Truncate shortens s for log fields. Line breaks and runs of whitespace
// collapse to a single space, then the result is cut to at most maxLen runes
// with "..." marking the cut.
func Truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

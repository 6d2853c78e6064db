package telegram

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage splits a message into chunks of maxLen characters,
// trying to split at newlines when possible.
func SplitMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		runes := []rune(text)
		if len(runes) <= maxLen {
			parts = append(parts, text)
			break
		}

		splitAt := maxLen
		chunk := string(runes[:maxLen])
		if i := strings.LastIndex(chunk, "\n"); i >= 0 {
			if at := utf8.RuneCountInString(chunk[:i]) + 1; at > maxLen/2 {
				splitAt = at
			}
		}

		parts = append(parts, string(runes[:splitAt]))
		text = string(runes[splitAt:])
	}

	return parts
}

// Truncate shortens text to maxLen characters, marking the cut.
func Truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	const marker = "\n\n... (truncated)"
	keep := max(maxLen-utf8.RuneCountInString(marker), 0)
	return string(runes[:keep]) + marker
}

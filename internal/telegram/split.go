package telegram

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is Telegram's limit for a single text message.
const MaxMessageLength = 4096

// splitMessage cuts text into chunks of at most limit bytes, preferring to
// break after a sentence, then a line, then a word. Runes are never split.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > limit {
		cut := splitPoint(remaining, limit)
		if chunk := strings.TrimRight(remaining[:cut], " "); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimLeft(remaining[cut:], " ")
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// splitPoint requires len(s) > limit.
func splitPoint(s string, limit int) int {
	window := s[:limit]
	for _, sep := range []string{". ", "\n", "? ", "! ", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i + len(sep)
		}
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}

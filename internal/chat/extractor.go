package chat

import (
	"regexp"
	"strings"
)

// fallbackMarker is the literal persona marker the model is prompted to use
// when the configured one does not appear in its output.
const fallbackMarker = "[GPT]:"

// Extractor isolates the final answer segment from a multi-persona,
// chain-of-thought-formatted completion.
type Extractor struct {
	// Marker is the primary response marker. Whether it or the fallback
	// is active is decided by plain substring presence; when the primary
	// occurs anywhere in the text the fallback's occurrences are ignored.
	Marker string
	// ErrorMessage replaces an answer that is empty after marker removal.
	ErrorMessage string
}

// Extract returns everything after the last occurrence of the active
// marker, trimmed. Text without any marker is returned unchanged.
func (e Extractor) Extract(raw string) string {
	marker := fallbackMarker
	if e.Marker != "" && strings.Contains(raw, e.Marker) {
		marker = e.Marker
	}

	pattern := regexp.MustCompile(regexp.QuoteMeta(marker))
	matches := pattern.FindAllStringIndex(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	last := matches[len(matches)-1]
	answer := strings.TrimSpace(raw[last[1]:])
	if answer == "" {
		return e.ErrorMessage
	}
	return answer
}

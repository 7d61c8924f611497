// Package chunker splits outbound text into segments that fit the
// Telegram message size limit. The same routine serves every send
// path so long responses and history listings split identically.
package chunker

import "unicode"

// DefaultLimit is the maximum segment length in characters.
const DefaultLimit = 4000

// Split partitions text into ordered segments of at most limit runes.
// Concatenating the segments reproduces text exactly. Splits prefer
// the nearest line break, then any whitespace, at or before the
// limit; a single token longer than the limit is cut at exactly limit
// runes. An empty input yields no segments.
func Split(text string, limit int) []string {
	if limit < 1 {
		limit = DefaultLimit
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := splitPoint(runes, limit)
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// splitPoint returns the cut index for the next segment, 1..limit.
func splitPoint(runes []rune, limit int) int {
	for i := limit; i > 0; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := limit; i > 0; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}

package text

import (
	"fmt"
	"regexp"
	"strings"

	"kbrag/internal/rag"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Clean collapses every run of whitespace (spaces, tabs, newlines) into a
// single space and trims the ends. Idempotent. Applied to page text before
// chunking and to questions before query embedding, so both sides of the
// search operate on the same normalization.
func Clean(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Chunk splits s into overlapping windows of at most size characters using a
// sliding window: each window starts overlap characters before the previous
// one ended, and the last window always ends at the text's end. A text shorter
// than size yields exactly one chunk; empty (post-trim) input yields none.
//
// Window arithmetic counts runes, not bytes, so multi-byte text is never cut
// mid-character.
//
// overlap >= size would never advance the window, so it is rejected rather
// than clamped.
func Chunk(s string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", rag.ErrValidation, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, chunk size), got %d", rag.ErrValidation, overlap)
	}

	runes := []rune(strings.TrimSpace(s))
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks, nil
}

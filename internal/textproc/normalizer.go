package textproc

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	disallowedPattern = regexp.MustCompile(`[^\w\s.,!?]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize prepares raw bug text for comparison: markup tags and characters
// outside word/whitespace/basic punctuation are replaced with spaces, runs of
// whitespace collapse to one space, and the result is trimmed. It never
// fails; malformed input degrades to best-effort stripped text.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = tagPattern.ReplaceAllString(text, " ")
	text = disallowedPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

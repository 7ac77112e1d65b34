// Package sanitize turns sender-controlled strings into plain display text.
package sanitize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML and returns plain text. bluemonday escapes what it
// keeps, so the result is unescaped again for templates that escape on output.
func Text(input string) string {
	return html.UnescapeString(StrictPolicy.Sanitize(input))
}

// Line is Text reduced to a single line of at most maxRunes runes, with an
// ellipsis when truncated. maxRunes <= 0 means no limit.
func Line(input string, maxRunes int) string {
	line := strings.Join(strings.Fields(Text(input)), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(line) <= maxRunes {
		return line
	}
	runes := []rune(line)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}

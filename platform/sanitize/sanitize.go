// Package sanitize cleans free text before it is stored or shown in a
// notification.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
	)
)

// Text strips HTML tags and collapses whitespace. Tags are stripped again
// after entity decoding so encoded markup does not survive.
func Text(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	result = whitespaceRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// Truncate sanitizes s and cuts it to at most max runes.
func Truncate(s string, max int) string {
	result := Text(s)
	runes := []rune(result)
	if max <= 0 || len(runes) <= max {
		return result
	}
	return strings.TrimSpace(string(runes[:max]))
}

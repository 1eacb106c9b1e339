// Package normalize cleans scraped text, URLs and dates into canonical
// form before articles are built from them.
package normalize

import (
	"regexp"
	"strings"
)

// boilerplate matches navigation and teaser fragments that leak out of
// listing markup. Applied case-insensitively after whitespace collapse.
var boilerplate = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\[\.\.\.?\]`),
	regexp.MustCompile(`(?i)\s*Read more\.?`),
	regexp.MustCompile(`(?i)\s*Continue reading\.?`),
	regexp.MustCompile(`(?i)\s*Click here\.?`),
	regexp.MustCompile(`(?i)^\s*Advertisement\s*$`),
	regexp.MustCompile(`(?i)\s*Share this:?\s*`),
}

// entities is the fixed decode table for the escapes the sources emit.
var entities = [...][2]string{
	{"&nbsp;", " "},
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
	{"&mdash;", "—"},
	{"&ndash;", "–"},
}

// CleanText collapses whitespace, strips boilerplate fragments, decodes
// HTML entities and truncates to maxLen runes. A maxLen of zero or less
// disables truncation. Empty input stays empty.
func CleanText(raw string, maxLen int) string {
	if raw == "" {
		return ""
	}
	text := strings.Join(strings.Fields(raw), " ")
	for _, re := range boilerplate {
		text = re.ReplaceAllString(text, "")
	}
	for _, e := range entities {
		text = strings.ReplaceAll(text, e[0], e[1])
	}
	text = strings.TrimSpace(text)
	if maxLen > 0 {
		text = Truncate(text, maxLen)
	}
	return text
}

// Truncate shortens s to at most maxLen runes, replacing the tail with
// "..." when anything was cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

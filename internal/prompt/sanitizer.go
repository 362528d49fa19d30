package prompt

import (
	"regexp"
	"strings"
)

var (
	// Control characters other than tab and newline
	controlCharPattern = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")

	// Script blocks and inline event handlers
	scriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script.*?>.*?</script>`),
		regexp.MustCompile(`(?i)<script[^>]*>`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)\bon(load|error|click|mouseover)\s*=`),
	}

	// SQL keywords that have no business in a clinical prompt
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(DROP\s+TABLE|DELETE\s+FROM|INSERT\s+INTO|UPDATE\s+\w+\s+SET|TRUNCATE\s+TABLE|UNION\s+SELECT|SELECT\s+\*\s+FROM)\b`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Sanitize strips control characters, script fragments and SQL keywords
// from text and collapses the remaining whitespace. Returns the empty
// string when nothing survives.
func Sanitize(text string) string {
	out := controlCharPattern.ReplaceAllString(text, "")
	for _, p := range scriptPatterns {
		out = p.ReplaceAllString(out, "")
	}
	out = sqlKeywordPattern.ReplaceAllString(out, "")
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

package ai

import (
	"regexp"
	"strings"
)

var (
	codeFence    = regexp.MustCompile("```[A-Za-z0-9_+-]*\\n?")
	doubleStar   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	singleStar   = regexp.MustCompile(`\*([^*]+)\*`)
	headerPrefix = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	inlineCode   = regexp.MustCompile("`([^`]+)`")
)

// Sanitize strips the markdown that models add despite being asked for plain text.
func Sanitize(text string) string {
	out := codeFence.ReplaceAllString(text, "")
	out = doubleStar.ReplaceAllString(out, "$1")
	out = singleStar.ReplaceAllString(out, "$1")
	out = strings.ReplaceAll(out, "*", "")
	out = headerPrefix.ReplaceAllString(out, "")
	out = inlineCode.ReplaceAllString(out, "$1")
	out = strings.ReplaceAll(out, "`", "")
	return strings.TrimSpace(out)
}

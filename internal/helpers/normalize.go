package helpers

import (
	"regexp"
	"strings"
)

var punctuationReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"：", ":",
	"，", ",",
	"（", "(",
	"）", ")",
	"\u00a0", " ",
	"\u200b", "", "\u200c", "", "\u200d", "", "\u2060", "",
	"\ufeff", "",
)

// fenceMarker matches ``` with an optional language tag (```json, ```JSON, ```js ...).
var fenceMarker = regexp.MustCompile("```[A-Za-z0-9_+\\-]*")

// NormalizeLLMOutput canonicalises raw model output before any parse attempt.
// Full-width colon, comma and parentheses plus curly quotes become ASCII, NBSP
// becomes a space, zero-width characters and BOMs are dropped and every
// code-fence marker is removed. It never fails.
func NormalizeLLMOutput(s string) string {
	if s == "" {
		return ""
	}
	s = punctuationReplacer.Replace(s)
	s = fenceMarker.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

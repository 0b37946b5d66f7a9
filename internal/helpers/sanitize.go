package helpers

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainTextPolicyOnce sync.Once
	plainTextPolicy     *bluemonday.Policy
)

// boilerplateBlocks matches page chrome whose text is never material content.
// bluemonday already drops script and style bodies; they are listed so the
// regexp pass leaves no stray text behind when markup is malformed.
var boilerplateBlocks = regexp.MustCompile(`(?is)<(script|style|nav|footer|header|aside|noscript)\b[^>]*>.*?</(script|style|nav|footer|header|aside|noscript)\s*>`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// PlainTextPolicy returns a singleton policy that strips every element and
// attribute. A space replaces each removed tag, so "<td>a</td><td>b</td>"
// becomes "a b" instead of "ab".
func PlainTextPolicy() *bluemonday.Policy {
	plainTextPolicyOnce.Do(func() {
		p := bluemonday.StrictPolicy()
		p.AddSpaceWhenStrippingTag(true)
		plainTextPolicy = p
	})
	return plainTextPolicy
}

// StripHTML turns an HTML fragment or page into readable plain text: page
// chrome blocks (nav, header, footer, aside, scripts and styles) are removed,
// remaining tags become spaces, entities are decoded and whitespace runs are
// collapsed to a single space. The output is a fixed point:
// StripHTML(StripHTML(s)) == StripHTML(s).
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = boilerplateBlocks.ReplaceAllString(s, " ")
	s = PlainTextPolicy().Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return escapeReparsable(strings.TrimSpace(s))
}

// escapeReparsable re-escapes the decoded text that another pass would read
// as markup or as an entity: '<' opening a tag, comment or declaration, and
// '&' starting a decodable entity. Everything else stays decoded.
func escapeReparsable(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '<' && i+1 < len(s) && opensMarkup(s[i+1]):
			b.WriteString("&lt;")
		case c == '&' && startsEntity(s[i:]):
			b.WriteString("&amp;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func opensMarkup(c byte) bool {
	return c == '/' || c == '!' || c == '?' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// startsEntity reports whether s, which begins with '&', decodes to
// something else up to the next '&'.
func startsEntity(s string) bool {
	end := strings.IndexByte(s[1:], '&')
	if end == -1 {
		end = len(s)
	} else {
		end++
	}
	if end > maxEntityWindow {
		end = maxEntityWindow
	}
	w := s[:end]
	return html.UnescapeString(w) != w
}

// maxEntityWindow covers the longest named entity plus its semicolon.
const maxEntityWindow = 40

package helpers

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrNoJSONObject is returned when no {...} span can be located.
var ErrNoJSONObject = errors.New("no JSON object found")

// ExtractJSONObject returns the first {...} span in s that holds a JSON
// object. Balanced candidates (braces inside strings are ignored) are tried in
// order and the first one that decodes after NormalizeLLMOutput wins, so prose
// such as "fill the {topic} slot" before the real object is skipped. When no
// candidate decodes, or a candidate never closes, the greedy span between the
// first '{' and the last '}' is returned so that truncated or slightly broken
// objects still reach the parser or the repair agent intact.
func ExtractJSONObject(s string) (string, error) {
	s = trimBOM(s)
	first := strings.IndexByte(s, '{')
	if first == -1 {
		return "", ErrNoJSONObject
	}
	for start := first; start != -1; {
		candidate, ok := extractBalancedObjectFrom(s, start)
		if !ok {
			break
		}
		if json.Valid([]byte(NormalizeLLMOutput(candidate))) {
			return candidate, nil
		}
		next := strings.IndexByte(s[start+len(candidate):], '{')
		if next == -1 {
			break
		}
		start += len(candidate) + next
	}
	last := strings.LastIndexByte(s, '}')
	if last <= first {
		return "", ErrNoJSONObject
	}
	return s[first : last+1], nil
}

// LooksLikeJSONObject reports whether s contains something shaped like a
// {...} span anywhere.
func LooksLikeJSONObject(s string) bool {
	first := strings.IndexByte(s, '{')
	return first != -1 && strings.LastIndexByte(s, '}') > first
}

// StripCodeFence removes a leading ```json or ``` fence and a trailing ```
// from a model reply. Text without a leading fence is only trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractBalancedObjectFrom attempts to extract a balanced JSON object starting
// at startIdx. Nested arrays are tracked so that mismatched closers abort.
func extractBalancedObjectFrom(s string, startIdx int) (string, bool) {
	if startIdx < 0 || startIdx >= len(s) || s[startIdx] != '{' {
		return "", false
	}

	var (
		stack    = []byte{'{'}
		inString bool
		escape   bool
	)

	for i := startIdx + 1; i < len(s); i++ {
		c := s[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			switch c {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[startIdx : i+1], true
			}
		}
	}

	return "", false
}

// trimBOM removes an optional UTF-8 BOM.
func trimBOM(s string) string {
	if strings.HasPrefix(s, "\uFEFF") {
		return strings.TrimPrefix(s, "\uFEFF")
	}
	if len(s) >= 3 {
		b0, b1, b2 := s[0], s[1], s[2]
		if b0 == 0xEF && b1 == 0xBB && b2 == 0xBF && utf8.ValidString(s[3:]) {
			return s[3:]
		}
	}
	return s
}

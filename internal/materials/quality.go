package materials

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var trustedDomains = []string{
	"scholar.google.com",
	"arxiv.org",
	"nature.com",
	"science.org",
	"springer.com",
	"wiley.com",
	"ieee.org",
	"acm.org",
	"sciencedirect.com",
	"researchgate.net",
	"semanticscholar.org",
	"pubmed.ncbi.nlm.nih.gov",
}

var spamMarkers = []string{
	"click here",
	"subscribe now",
	"sign up",
	"advertisement",
	"sponsored",
	"cookie policy",
	"privacy policy",
	"terms of service",
	"404 not found",
	"page not found",
	"access denied",
	"login required",
	"paywall",
}

const (
	minUsefulContent = 50
	spamThreshold    = 3
)

// QualityScore averages the heuristic factors that apply to d: title
// length, content length, URL trust, authorship, citations and publication
// age relative to now.
func QualityScore(d Document, now time.Time) float64 {
	var score float64
	factors := 0

	if utf8.RuneCountInString(d.Title) > 10 {
		score += 0.2
		factors++
	}

	if d.Content != "" {
		switch n := utf8.RuneCountInString(d.Content); {
		case n > 500:
			score += 0.3
		case n > 200:
			score += 0.2
		case n > 100:
			score += 0.1
		}
		factors++
	}

	if host, ok := hostname(d.URL); ok {
		if isTrusted(host) {
			score += 0.3
		} else {
			score += 0.1
		}
		factors++
	}

	if len(d.Authors) > 0 {
		score += 0.1
		factors++
	}

	if d.CitationCount > 0 {
		switch {
		case d.CitationCount > 100:
			score += 0.2
		case d.CitationCount > 50:
			score += 0.15
		case d.CitationCount > 10:
			score += 0.1
		}
		factors++
	}

	if d.Year > 0 {
		switch age := now.Year() - d.Year; {
		case age <= 1:
			score += 0.15
		case age <= 3:
			score += 0.1
		case age <= 5:
			score += 0.05
		}
		factors++
	}

	if factors == 0 {
		return 0
	}
	return clamp01(score / float64(factors))
}

func hostname(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

func isTrusted(host string) bool {
	for _, d := range trustedDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// IsLowQuality reports content that is too short to be useful or that
// reads like page chrome (at least three spam markers).
func IsLowQuality(content string) bool {
	if utf8.RuneCountInString(content) < minUsefulContent {
		return true
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, m := range spamMarkers {
		if strings.Contains(lower, m) {
			hits++
		}
	}
	return hits >= spamThreshold
}

var titleNoise = regexp.MustCompile(`[^\w\s\x{4e00}-\x{9fff}]`)

// NormalizeTitle lowercases title and drops punctuation, keeping ASCII word
// characters and CJK ideographs.
func NormalizeTitle(title string) string {
	t := titleNoise.ReplaceAllString(strings.ToLower(title), "")
	return strings.Join(strings.Fields(t), " ")
}

// TitleSimilarity is 1 for equal normalised titles, 0.9 when one contains
// the other and the word-set Jaccard index otherwise.
func TitleSimilarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.9
	}

	set := make(map[string]uint8)
	for _, w := range strings.Split(na, " ") {
		set[w] |= 1
	}
	for _, w := range strings.Split(nb, " ") {
		set[w] |= 2
	}
	inter := 0
	for _, mask := range set {
		if mask == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

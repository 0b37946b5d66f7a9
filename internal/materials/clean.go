package materials

import (
	"time"
	"unicode/utf8"

	"github.com/mohammad-safakhou/cowrite/internal/helpers"
)

// titleDuplicateThreshold is the title similarity above which two documents
// are treated as the same item.
const titleDuplicateThreshold = 0.85

// Options controls Clean. Start from DefaultOptions or OptionsFor; the zero
// value disables every stage.
type Options struct {
	RemoveHTML         bool    `json:"remove_html" mapstructure:"remove_html"`
	DeduplicateByURL   bool    `json:"deduplicate_by_url" mapstructure:"deduplicate_by_url"`
	DeduplicateByTitle bool    `json:"deduplicate_by_title" mapstructure:"deduplicate_by_title"`
	RemoveLowQuality   bool    `json:"remove_low_quality" mapstructure:"remove_low_quality"`
	MinContentLength   int     `json:"min_content_length" mapstructure:"min_content_length"`
	MinQualityScore    float64 `json:"min_quality_score" mapstructure:"min_quality_score"`

	// Now dates the recency factor; nil means time.Now.
	Now func() time.Time `json:"-" mapstructure:"-"`
}

func DefaultOptions() Options {
	return Options{
		RemoveHTML:         true,
		DeduplicateByURL:   true,
		DeduplicateByTitle: true,
		RemoveLowQuality:   true,
		MinContentLength:   100,
		MinQualityScore:    0.3,
	}
}

// OptionsFor returns the cleaning settings tuned for one source family.
// Abstracts and snippets are short, so academic, news and web results get
// lower length and quality floors.
func OptionsFor(t SourceType) Options {
	o := DefaultOptions()
	switch t {
	case Academic:
		o.MinContentLength = 50
		o.MinQualityScore = 0.2
	case News, Web:
		o.MinContentLength = 30
		o.MinQualityScore = 0.15
	}
	return o
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Clean filters, scores and deduplicates docs. Survivors keep their input
// order; for duplicates the first one seen is kept. Running Clean again on
// its own output with the same options removes nothing.
func Clean(docs []Document, opts Options) []RankedDocument {
	now := opts.now()
	out := make([]RankedDocument, 0, len(docs))
	seenURL := make(map[string]struct{})

	for _, d := range docs {
		if opts.RemoveHTML {
			d.Title = helpers.StripHTML(d.Title)
			d.Content = helpers.StripHTML(d.Content)
		}
		if utf8.RuneCountInString(d.Content) < opts.MinContentLength {
			continue
		}
		if opts.RemoveLowQuality && IsLowQuality(d.Content) {
			continue
		}

		score := QualityScore(d, now)
		if score < opts.MinQualityScore {
			continue
		}

		var key string
		if opts.DeduplicateByURL && d.URL != "" {
			key = helpers.URLDedupKey(d.URL)
			if _, dup := seenURL[key]; dup {
				continue
			}
		}
		if opts.DeduplicateByTitle && hasSimilarTitle(out, d.Title) {
			continue
		}
		if key != "" {
			seenURL[key] = struct{}{}
		}

		out = append(out, RankedDocument{Document: d, QualityScore: score})
	}
	return out
}

func hasSimilarTitle(kept []RankedDocument, title string) bool {
	for _, k := range kept {
		if TitleSimilarity(k.Title, title) > titleDuplicateThreshold {
			return true
		}
	}
	return false
}

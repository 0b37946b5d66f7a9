package materials

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("evidence ", n))
}

func permissive() Options {
	o := DefaultOptions()
	o.RemoveLowQuality = false
	o.MinContentLength = 0
	o.MinQualityScore = 0
	o.Now = func() time.Time { return fixedNow }
	return o
}

func TestCleanKeepsFirstDocumentForSameURL(t *testing.T) {
	t.Parallel()
	docs := []Document{
		{Title: "Coral reefs under heat stress", URL: "https://www.example.org/reefs/", Content: words(40)},
		{Title: "A different headline entirely", URL: "http://example.org/reefs", Content: words(80)},
	}

	got := Clean(docs, permissive())
	require.Len(t, got, 1)
	assert.Equal(t, "Coral reefs under heat stress", got[0].Title)
}

func TestCleanDeduplicatesSimilarTitles(t *testing.T) {
	t.Parallel()
	docs := []Document{
		{Title: "Go Concurrency Patterns", URL: "https://a.example/1", Content: words(30)},
		{Title: "go concurrency patterns!", URL: "https://b.example/2", Content: words(30)},
		{Title: "Go Concurrency Patterns in Practice", URL: "https://c.example/3", Content: words(30)},
		{Title: "Rust ownership explained", URL: "https://d.example/4", Content: words(30)},
	}

	got := Clean(docs, permissive())
	titles := make([]string, len(got))
	for i, d := range got {
		titles[i] = d.Title
	}
	assert.Equal(t, []string{"Go Concurrency Patterns", "Rust ownership explained"}, titles)
}

func TestCleanFiltersAndStripsHTML(t *testing.T) {
	t.Parallel()
	opts := permissive()
	opts.RemoveLowQuality = true
	opts.MinContentLength = 60

	docs := []Document{
		{Title: "<b>Bold</b> claim about tides", Content: "<nav>Home | About</nav><p>" + words(20) + " &amp; more</p>"},
		{Title: "too short", Content: "tiny"},
		{Title: "spammy", Content: words(20) + " click here to sign up behind our paywall"},
	}

	got := Clean(docs, opts)
	require.Len(t, got, 1)
	assert.Equal(t, "Bold claim about tides", got[0].Title)
	assert.Equal(t, words(20)+" & more", got[0].Content)
	assert.False(t, got[0].IsSelected)
}

func TestCleanDropsBelowQualityFloor(t *testing.T) {
	t.Parallel()
	opts := permissive()
	opts.MinQualityScore = 0.25

	docs := []Document{
		{Title: "short", Content: words(30)},
		{Title: "A long enough title", Content: words(120), URL: "https://arxiv.org/abs/1"},
	}
	got := Clean(docs, opts)
	require.Len(t, got, 1)
	assert.Equal(t, "A long enough title", got[0].Title)
	assert.GreaterOrEqual(t, got[0].QualityScore, 0.25)
}

func TestCleanIsIdempotent(t *testing.T) {
	t.Parallel()
	opts := permissive()
	opts.RemoveLowQuality = true
	opts.MinContentLength = 50

	docs := []Document{
		{Title: "Ocean <i>acidification</i> trends", URL: "https://www.nature.com/articles/x1/", Content: "<p>" + words(60) + "</p>", Year: 2024, Authors: []string{"Lee"}},
		{Title: "Ocean acidification trends", URL: "https://other.example/x", Content: words(60)},
		{Title: "Kelp forest recovery", URL: "https://nature.com/articles/x1", Content: words(60)},
		{Title: "Sea level rise in deltas", Content: words(25) + " &amp; measured"},
		{Title: "Short one", Content: "not enough"},
		{Title: "Escaped markup sample", URL: "https://blog.example/escaped", Content: "Safe sample: x &lt;y " + words(60)},
		{Title: "Double escaped entities", URL: "https://blog.example/double", Content: "Literal &amp;lt;b&amp;gt; and &amp;amp; " + words(60)},
	}

	once := Clean(docs, opts)
	twice := Clean(Documents(once), opts)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second pass changed the list (-once +twice):\n%s", diff)
	}
	require.Len(t, once, 4)
	assert.True(t, strings.HasPrefix(once[2].Content, "Safe sample: x &lt;y evidence"), once[2].Content)
	assert.True(t, strings.HasPrefix(once[3].Content, "Literal &amp;lt;b&amp;gt; and &amp;amp; evidence"), once[3].Content)
}

func TestOptionsFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		source     SourceType
		minContent int
		minQuality float64
	}{
		{Academic, 50, 0.2},
		{News, 30, 0.15},
		{Web, 30, 0.15},
		{UserLibrary, 100, 0.3},
		{Personal, 100, 0.3},
	}
	for _, tc := range tests {
		o := OptionsFor(tc.source)
		assert.Equal(t, tc.minContent, o.MinContentLength, tc.source)
		assert.InDelta(t, tc.minQuality, o.MinQualityScore, 1e-9, tc.source)
		assert.True(t, o.RemoveHTML && o.DeduplicateByURL && o.DeduplicateByTitle && o.RemoveLowQuality)
	}
}

func TestQualityScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  Document
		want float64
	}{
		{name: "no factors", doc: Document{}, want: 0},
		{name: "content only", doc: Document{Content: strings.Repeat("x", 150)}, want: 0.1},
		{
			name: "every factor at its best",
			doc: Document{
				Title:         "Protein folding with deep nets",
				Content:       strings.Repeat("x", 600),
				URL:           "https://arxiv.org/abs/2501.00001",
				Authors:       []string{"Kim"},
				CitationCount: 120,
				Year:          2025,
			},
			want: (0.2 + 0.3 + 0.3 + 0.1 + 0.2 + 0.15) / 6,
		},
		{name: "untrusted host", doc: Document{Content: strings.Repeat("x", 600), URL: "https://blog.example.com/p"}, want: (0.3 + 0.1) / 2},
		{name: "old paper counts but adds nothing", doc: Document{Content: strings.Repeat("x", 600), Year: 2015}, want: 0.3 / 2},
		{name: "few citations", doc: Document{Content: strings.Repeat("x", 250), CitationCount: 5}, want: 0.2 / 2},
		{name: "unparseable url is ignored", doc: Document{Content: strings.Repeat("x", 600), URL: "not a url"}, want: 0.3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, QualityScore(tc.doc, fixedNow), 1e-9)
		})
	}
}

func TestIsLowQuality(t *testing.T) {
	t.Parallel()
	assert.True(t, IsLowQuality("short"))
	assert.True(t, IsLowQuality(words(20)+" Click Here, Subscribe Now, Advertisement"))
	assert.False(t, IsLowQuality(words(20)+" see our privacy policy and terms of service"))
	assert.False(t, IsLowQuality(words(20)))
}

func TestTitleSimilarity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want float64
	}{
		{"Hello, World!", "hello   world", 1},
		{"Deep learning", "Deep learning: a survey", 0.9},
		{"alpha beta gamma", "alpha beta delta", 0.5},
		{"", "anything", 0},
		{"!!!", "???", 0},
		{"深度学习！", "深度学习", 1},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, TitleSimilarity(tc.a, tc.b), 1e-9, "%q vs %q", tc.a, tc.b)
	}
}

func TestKeywordRelevance(t *testing.T) {
	t.Parallel()
	d := RankedDocument{
		Document:     Document{Title: "Urban Heat Islands", Content: "Tree canopy lowers surface temperature."},
		QualityScore: 0.2,
	}

	assert.InDelta(t, 0.2+0.3+0.05, KeywordRelevance(d, "heat islands", []string{"canopy"}), 1e-9)
	assert.InDelta(t, 0.2+0.1+0.1, KeywordRelevance(d, "surface temperature", []string{"URBAN"}), 1e-9)
	assert.InDelta(t, 0.2, KeywordRelevance(d, "", []string{"", "  "}), 1e-9)

	d.QualityScore = 0.9
	assert.Equal(t, 1.0, KeywordRelevance(d, "urban", []string{"heat", "islands", "tree"}))
}

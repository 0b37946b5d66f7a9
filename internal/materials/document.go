// Package materials cleans, scores, deduplicates and reranks documents
// gathered from the retrieval sources before they reach the writing agents.
package materials

// SourceType is the retrieval family a document came from.
type SourceType string

const (
	Academic    SourceType = "academic"
	News        SourceType = "news"
	Web         SourceType = "web"
	UserLibrary SourceType = "user_library"
	Personal    SourceType = "personal"
)

// Document is a retrieved item in the uniform shape every source maps into.
// Year and CitationCount are zero when unknown.
type Document struct {
	ID            string     `json:"id,omitempty"`
	Title         string     `json:"title"`
	URL           string     `json:"url,omitempty"`
	Content       string     `json:"content"`
	SourceType    SourceType `json:"source_type"`
	Authors       []string   `json:"authors,omitempty"`
	Year          int        `json:"year,omitempty"`
	CitationCount int        `json:"citation_count,omitempty"`
	PublishedAt   string     `json:"published_at,omitempty"`
	Source        string     `json:"source,omitempty"`
}

// RankedDocument is a cleaned document with its scores. Every score is in
// [0,1].
type RankedDocument struct {
	Document
	QualityScore        float64 `json:"quality_score"`
	SimilarityScore     float64 `json:"similarity_score"`
	EmbeddingSimilarity float64 `json:"embedding_similarity"`
	IsSelected          bool    `json:"is_selected"`
}

// Documents strips the scores off ranked, e.g. to clean a list again.
func Documents(ranked []RankedDocument) []Document {
	out := make([]Document, len(ranked))
	for i, r := range ranked {
		out[i] = r.Document
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

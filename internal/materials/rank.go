package materials

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/cowrite/internal/embedding"
)

const (
	DefaultTopN             = 5
	DefaultMaxContentLength = 2000
	defaultEmbedConcurrency = 5

	embeddingWeight = 0.7
	keywordWeight   = 0.3
)

// KeywordRelevance scores d against a query and its keywords as a lexical
// boost on top of the quality score. Matching is case-insensitive; blank
// terms never match.
func KeywordRelevance(d RankedDocument, query string, keywords []string) float64 {
	title := strings.ToLower(d.Title)
	content := strings.ToLower(d.Content)
	score := d.QualityScore

	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		if strings.Contains(title, q) {
			score += 0.3
		} else if strings.Contains(content, q) {
			score += 0.1
		}
	}
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if strings.Contains(title, k) {
			score += 0.1
		} else if strings.Contains(content, k) {
			score += 0.05
		}
	}
	return clamp01(score)
}

type RerankOptions struct {
	TopN             int  `json:"top_n"`
	MaxContentLength int  `json:"max_content_length"`
	KeywordOnly      bool `json:"keyword_only"`
}

type Ranker struct {
	embedder    embedding.Embedder
	concurrency int
	logger      *zap.Logger
}

type RankerOption func(*Ranker)

// WithConcurrency bounds in-flight document embedding requests.
func WithConcurrency(n int) RankerOption {
	return func(r *Ranker) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithLogger(l *zap.Logger) RankerOption {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRanker returns a Ranker backed by e. A nil e ranks by keyword relevance
// only.
func NewRanker(e embedding.Embedder, opts ...RankerOption) *Ranker {
	r := &Ranker{embedder: e, concurrency: defaultEmbedConcurrency, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores docs against the query, sorts them best first (stable for
// equal scores), marks the top N as selected and returns only those. The
// input slice is not modified.
func (r *Ranker) Rerank(ctx context.Context, docs []RankedDocument, query string, keywords []string, opts RerankOptions) []RankedDocument {
	if len(docs) == 0 {
		return []RankedDocument{}
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = DefaultMaxContentLength
	}

	out := make([]RankedDocument, len(docs))
	copy(out, docs)

	sims, ok := r.embeddingSimilarities(ctx, out, query, keywords, opts)
	for i := range out {
		kw := KeywordRelevance(out[i], query, keywords)
		if !ok {
			out[i].EmbeddingSimilarity = 0
			out[i].SimilarityScore = kw
			continue
		}
		out[i].EmbeddingSimilarity = sims[i]
		out[i].SimilarityScore = clamp01(embeddingWeight*sims[i] + keywordWeight*kw)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SimilarityScore > out[j].SimilarityScore })

	if len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	for i := range out {
		out[i].IsSelected = true
	}
	return out
}

// embeddingSimilarities returns one clamped cosine per document, or false
// when semantic scoring is unavailable for this call.
func (r *Ranker) embeddingSimilarities(ctx context.Context, docs []RankedDocument, query string, keywords []string, opts RerankOptions) ([]float64, bool) {
	if r.embedder == nil || opts.KeywordOnly {
		return nil, false
	}

	qText := strings.TrimSpace(strings.Join(append([]string{query}, keywords...), " "))
	qv, err := r.embedder.Embed(ctx, []string{qText})
	if err != nil || len(qv) != 1 {
		r.logger.Warn("query embedding failed; ranking by keyword relevance", zap.Error(err), zap.Int("vectors", len(qv)))
		return nil, false
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Title + "\n\n" + truncateRunes(d.Content, opts.MaxContentLength)
	}
	vectors, errs := embedding.EmbedEach(ctx, r.embedder, texts, r.concurrency)

	sims := make([]float64, len(docs))
	failed := 0
	for i, v := range vectors {
		if errs[i] != nil {
			failed++
			continue
		}
		sims[i] = clamp01(embedding.Cosine(qv[0], v))
	}
	if failed > 0 {
		r.logger.Warn("document embeddings failed", zap.Int("failed", failed), zap.Int("total", len(docs)))
	}
	return sims, true
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Package embedding turns text into vectors for semantic reranking. Backends
// are the local embedding service, any OpenAI-compatible /embeddings endpoint
// and the Gemini API.
package embedding

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/provider"
	genai_provider "github.com/mohammad-safakhou/cowrite/provider/genai"
	openai_provider "github.com/mohammad-safakhou/cowrite/provider/openai"
)

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HealthChecker is implemented by backends that can report availability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Func adapts a plain function to Embedder.
type Func func(ctx context.Context, texts []string) ([][]float32, error)

func (f Func) Embed(ctx context.Context, texts []string) ([][]float32, error) { return f(ctx, texts) }

// FromProvider adapts a provider embeddings endpoint.
func FromProvider(p provider.Embedder) Embedder {
	return Func(p.CreateEmbedding)
}

// New builds the embedder selected by cfg.Type. An empty type or "none"
// returns a nil Embedder, which makes rankers fall back to keyword scoring.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case "", "none":
		logger.Info("embedding disabled; reranking falls back to keyword relevance")
		return nil, nil
	case "service":
		if cfg.URL == "" {
			return nil, fmt.Errorf("embedding.url is required for the service backend")
		}
		return NewServiceClient(cfg.URL, WithTimeout(cfg.Timeout)), nil
	case string(provider.OpenAI):
		c := openai_provider.NewClient("embedding", cfg.URL, cfg.APIKey,
			openai_provider.WithEmbeddingModel(cfg.Model),
			openai_provider.WithTimeout(cfg.Timeout),
		)
		return FromProvider(c), nil
	case string(provider.GenAI):
		c, err := genai_provider.NewClient(ctx, genai_provider.Config{
			Name:           "embedding",
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.URL,
			EmbeddingModel: cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("genai embedder: %w", err)
		}
		return FromProvider(c), nil
	default:
		return nil, fmt.Errorf("unsupported embedding type: %s (use service, openai or genai)", cfg.Type)
	}
}

// EmbedEach embeds every text with its own request, at most limit at a time.
// A failed text leaves a nil vector and its error at the same index; the
// others are unaffected.
func EmbedEach(ctx context.Context, e Embedder, texts []string, limit int) ([][]float32, []error) {
	vectors := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, text := range texts {
		g.Go(func() error {
			out, err := e.Embed(gctx, []string{text})
			switch {
			case err != nil:
				errs[i] = err
			case len(out) != 1:
				errs[i] = fmt.Errorf("embedding: got %d vectors for 1 text", len(out))
			default:
				vectors[i] = out[0]
			}
			return nil
		})
	}
	_ = g.Wait()
	return vectors, errs
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

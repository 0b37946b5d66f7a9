package genai_provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/mohammad-safakhou/cowrite/provider"
)

// Client implements provider.Provider and provider.Embedder on top of the
// native Gemini API.
type Client struct {
	name           string
	client         *genai.Client
	model          string
	embeddingModel string
	temperature    float64
	maxTokens      int
}

// Config holds the settings needed to reach the Gemini API. BaseURL is only
// set for relays and tests.
type Config struct {
	Name           string
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}
	return &Client{
		name:           name,
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    provider.DefaultTemperature,
		maxTokens:      provider.DefaultMaxTokens,
	}, nil
}

func (c *Client) Name() string { return c.name }

// Model returns the default completion model.
func (c *Client) Model() string { return c.model }

// Generate sends the prompt as a single user turn and concatenates the text
// parts of the first candidate.
func (c *Client) Generate(ctx context.Context, req provider.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := float32(req.TemperatureOr(c.temperature))
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokensOr(c.maxTokens)),
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("%s: generate: %w", c.name, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%s: %w", c.name, provider.ErrNoChoices)
	}

	var b strings.Builder
	if cand := resp.Candidates[0]; cand != nil && cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%s: %w", c.name, provider.ErrEmptyContent)
	}
	return b.String(), nil
}

// CreateEmbedding embeds texts with the retrieval-document task type.
func (c *Client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: embed: %w", c.name, err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%s: embeddings returned %d vectors for %d inputs", c.name, len(result.Embeddings), len(texts))
	}
	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vecs[i] = emb.Values
	}
	return vecs, nil
}

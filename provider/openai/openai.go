package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/cowrite/provider"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	DefaultEmbeddingModel = "text-embedding-3-small"
	maxErrorBody          = 512
)

// Client implements provider.Provider and provider.Embedder against an
// OpenAI-compatible HTTP API.
type Client struct {
	name           string
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	temperature    float64
	maxTokens      int
	httpClient     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the completion model used when a request leaves it blank.
func WithModel(model string) Option { return func(c *Client) { c.model = model } }

// WithEmbeddingModel sets the model used by CreateEmbedding.
func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithTimeout bounds every HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDefaults overrides the temperature and max token defaults.
func WithDefaults(temperature float64, maxTokens int) Option {
	return func(c *Client) {
		c.temperature = temperature
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a client named name (used in error messages) talking to
// baseURL. An empty baseURL targets api.openai.com.
func NewClient(name, baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		name:           name,
		baseURL:        NormalizeBaseURL(baseURL),
		apiKey:         apiKey,
		embeddingModel: DefaultEmbeddingModel,
		temperature:    provider.DefaultTemperature,
		maxTokens:      provider.DefaultMaxTokens,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeBaseURL trims trailing slashes and appends /v1 when the path does
// not already end with it, so both "https://relay.example.com" and
// "https://relay.example.com/v1/" resolve to the same endpoint.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return defaultBaseURL
	}
	if !strings.HasSuffix(raw, "/v1") {
		raw += "/v1"
	}
	return raw
}

func (c *Client) Name() string { return c.name }

// Model returns the default completion model.
func (c *Client) Model() string { return c.model }

// Generate sends one user message and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, req provider.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := request{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.TemperatureOr(c.temperature),
		MaxTokens:   req.MaxTokensOr(c.maxTokens),
	}

	var out response
	if err := c.postJSON(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", c.name, provider.ErrNoChoices)
	}
	content := out.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: %w", c.name, provider.ErrEmptyContent)
	}
	return content, nil
}

// CreateEmbedding generates one embedding per input text, in input order.
func (c *Client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%s: embeddings returned %d vectors for %d inputs", c.name, len(out.Data), len(texts))
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &provider.StatusError{Provider: c.name, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", c.name, err)
	}
	return nil
}

package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/cowrite/internal/helpers"
)

const defaultServiceTimeout = 30 * time.Second

// ServiceClient talks to the local sentence-embedding service:
// POST /embeddings {"texts": [...]} answers {"embeddings": [[...], ...]}.
type ServiceClient struct {
	baseURL string
	timeout time.Duration
	retries int
	http    *helpers.HTTPClient
}

type ServiceOption func(*ServiceClient)

func WithTimeout(d time.Duration) ServiceOption {
	return func(c *ServiceClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRetries(n int) ServiceOption {
	return func(c *ServiceClient) { c.retries = n }
}

// NewServiceClient creates a client for the service rooted at baseURL.
func NewServiceClient(baseURL string, opts ...ServiceOption) *ServiceClient {
	c := &ServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultServiceTimeout,
		retries: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = helpers.NewHTTPClient(c.timeout, c.retries, 0)
	return c
}

type serviceRequest struct {
	Texts []string `json:"texts"`
}

type serviceResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements Embedder.
func (c *ServiceClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out serviceResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/embeddings", nil, serviceRequest{Texts: texts}, &out); err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service: got %d vectors for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// Health implements HealthChecker.
func (c *ServiceClient) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/health", nil, nil, &out); err != nil {
		return fmt.Errorf("embedding service health: %w", err)
	}
	if out.Status != "ok" {
		return fmt.Errorf("embedding service health: status %q", out.Status)
	}
	return nil
}

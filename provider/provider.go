package provider

import (
	"context"
	"errors"
	"fmt"
)

// Client identifies the wire protocol a provider speaks.
type Client string

const (
	// OpenAI is any OpenAI-compatible chat completions endpoint (OpenAI,
	// Gemini relays, DashScope compatible mode, local gateways).
	OpenAI Client = "openai"
	// GenAI is Google's native Gemini API through google.golang.org/genai.
	GenAI Client = "genai"
)

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 8192
)

// ErrEmptyContent is returned when a provider answers successfully but the
// generated message is blank.
var ErrEmptyContent = errors.New("empty content in response")

// ErrNoChoices is returned when the response carries no generated message.
var ErrNoChoices = errors.New("no choices in response")

// Request is one generation call. A nil Temperature or zero MaxTokens means
// "use the provider default"; a blank Model likewise.
type Request struct {
	Prompt      string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// TemperatureOr returns the requested temperature or def.
func (r Request) TemperatureOr(def float64) float64 {
	if r.Temperature == nil {
		return def
	}
	return *r.Temperature
}

// MaxTokensOr returns the requested token cap or def.
func (r Request) MaxTokensOr(def int) int {
	if r.MaxTokens <= 0 {
		return def
	}
	return r.MaxTokens
}

// Temperature is a convenience for building a Request literal.
func Temperature(v float64) *float64 { return &v }

// Provider is the interface that all LLM implementations must satisfy.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Embedder is implemented by providers that also expose an embeddings endpoint.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// StatusError reports a non-2xx answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: API returned status: %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: API returned status: %d: %s", e.Provider, e.Code, e.Body)
}

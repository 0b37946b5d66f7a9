package core

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/provider"
	genai_provider "github.com/mohammad-safakhou/cowrite/provider/genai"
	openai_provider "github.com/mohammad-safakhou/cowrite/provider/openai"
)

// NewLLMProvider creates a provider client based on configuration.
func NewLLMProvider(ctx context.Context, p config.LLMProvider, defaults config.LLMConfig) (provider.Provider, error) {
	switch provider.Client(p.Type) {
	case provider.OpenAI, "":
		return openai_provider.NewClient(p.Name, p.BaseURL, p.APIKey,
			openai_provider.WithModel(p.Model),
			openai_provider.WithTimeout(p.Timeout),
			openai_provider.WithDefaults(defaults.Temperature, defaults.MaxTokens),
		), nil
	case provider.GenAI:
		c, err := genai_provider.NewClient(ctx, genai_provider.Config{
			Name:    p.Name,
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Model:   p.Model,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", p.Type)
	}
}

// NewStrategies builds the ordered failover list: primary first, secondary
// second. Providers without credentials are left out; at least one must remain.
func NewStrategies(ctx context.Context, cfg config.LLMConfig) ([]Strategy, error) {
	var strategies []Strategy
	for _, p := range []config.LLMProvider{cfg.Primary, cfg.Secondary} {
		if p.APIKey == "" {
			continue
		}
		prov, err := NewLLMProvider(ctx, p, cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		strategies = append(strategies, Strategy{Name: p.Name, Provider: prov, DefaultModel: p.Model})
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no LLM providers configured (llm.primary.api_key / llm.secondary.api_key)")
	}
	return strategies, nil
}

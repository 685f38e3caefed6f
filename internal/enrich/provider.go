// Package enrich assigns pricing-tier categories to scraped products,
// preferring the judgment of an LLM provider and falling back to a
// deterministic price-ratio rule whenever the provider is unusable.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/config"
)

var ErrMissingAPIKey = errors.New("api key not configured")

// Placeholder values shipped in .env templates count as unconfigured.
const (
	openAIKeyPlaceholder    = "your_openai_api_key_here"
	anthropicKeyPlaceholder = "your_anthropic_api_key_here"
)

// Provider is the engine's single external, non-deterministic dependency.
// Complete sends one prompt and returns the raw response text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// NewProvider selects the concrete vendor once, at construction. Missing or
// placeholder credentials are a configuration error, caught before any
// provider traffic.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" || cfg.OpenAIKey == openAIKeyPlaceholder {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
		}
		return newOpenAIProvider(cfg), nil
	case "anthropic":
		if cfg.AnthropicKey == "" || cfg.AnthropicKey == anthropicKeyPlaceholder {
			return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY", ErrMissingAPIKey)
		}
		return newAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

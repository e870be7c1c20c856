package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a provider answers without usable text.
var ErrEmptyResponse = errors.New("empty model response")

// Client generates JSON documents from prompts.
type Client interface {
	// GenerateJSON returns the model's JSON answer with any markdown fence removed.
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// Model returns the provider model used for tier.
	Model(tier ModelTier) string
	// Close releases provider resources.
	Close() error
}

// NewClient creates a client for cfg.Provider.
func NewClient(ctx context.Context, cfg *Config, apiKey string) (Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for provider %s", cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, cfg, apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

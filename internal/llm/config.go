// Package llm wraps the generative-text providers used for résumé analysis.
package llm

// ModelTier selects how capable (and how slow) a model should be.
type ModelTier string

const (
	// TierLite is for short classification-style prompts.
	TierLite ModelTier = "lite"
	// TierStandard generates follow-up questions.
	TierStandard ModelTier = "standard"
	// TierAdvanced produces the final assessment.
	TierAdvanced ModelTier = "advanced"
)

// Provider names a model vendor.
type Provider string

// Supported providers.
const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Config maps tiers to provider model names.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
	// BaseURL overrides the provider endpoint (OpenAI-compatible servers only).
	BaseURL string
}

// DefaultConfig returns the Gemini configuration.
func DefaultConfig() *Config {
	return DefaultConfigFor(ProviderGemini)
}

// DefaultConfigFor returns tier defaults for provider. Unknown providers get Gemini defaults.
func DefaultConfigFor(provider Provider) *Config {
	switch provider {
	case ProviderOpenAI:
		return &Config{
			Provider:    ProviderOpenAI,
			Temperature: 0.2,
			Models: map[ModelTier]string{
				TierLite:     "gpt-4o-mini",
				TierStandard: "gpt-4o-mini",
				TierAdvanced: "gpt-4o",
			},
		}
	default:
		return &Config{
			Provider:    ProviderGemini,
			Temperature: 0.2,
			Models: map[ModelTier]string{
				TierLite:     "gemini-2.5-flash-lite",
				TierStandard: "gemini-2.5-flash",
				TierAdvanced: "gemini-2.5-pro",
			},
		}
	}
}

// Model returns the model for tier, falling back to standard then lite.
func (c *Config) Model(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if m, ok := c.Models[t]; ok && m != "" {
			return m
		}
	}
	return ""
}

// WithModel returns a copy of c with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return &next
}

// Pinned returns a copy of c that uses model for every tier. An empty model
// returns c unchanged.
func (c *Config) Pinned(model string) *Config {
	if model == "" {
		return c
	}
	next := c
	for _, t := range []ModelTier{TierLite, TierStandard, TierAdvanced} {
		next = next.WithModel(t, model)
	}
	return next
}

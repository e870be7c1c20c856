package ratelimit

import (
	"time"
)

// EndpointConfig limits one route.
type EndpointConfig struct {
	Path   string // exact path, or a prefix when it ends in "/"
	Method string
	Limit  int // requests per Window; zero means unlimited
	Window time.Duration
	Burst  int // defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// IdleTTL is how long an unused bucket is kept.
	IdleTTL time.Duration
	// Trusted clients are never limited.
	Trusted         map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewConfig returns a Config with the assessment endpoint limits.
func NewConfig(enabled bool, defaultLimit int, window time.Duration) *Config {
	if window <= 0 {
		window = time.Minute
	}
	return &Config{
		Enabled:         enabled,
		DefaultLimit:    defaultLimit,
		DefaultWindow:   window,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Trusted:         map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs limits the routes that call the extractor or the
// analysis model more strictly than reads.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/api/profile/upload-resume", Method: "POST", Limit: 10, Window: time.Hour, Burst: 3},
		{Path: "/api/profile/generate-questions", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/api/profile/final-analysis", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/api/profile/answers", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
	}
}

package config

import (
	"fmt"
	"time"
)

const (
	// DefaultCookieName carries the session token in browsers.
	DefaultCookieName = "career-session"
	// DefaultSessionTTL is how long an idle session and its token stay valid.
	DefaultSessionTTL = 7 * 24 * time.Hour
	// minSecretLength is the shortest accepted token signing secret.
	minSecretLength = 16
)

// SessionConfig holds session token and storage settings.
type SessionConfig struct {
	// Secret signs session tokens. Required to serve.
	Secret       string        `mapstructure:"secret"`
	CookieName   string        `mapstructure:"cookie_name" validate:"required"`
	TTL          time.Duration `mapstructure:"ttl" validate:"gte=1h"`
	Store        string        `mapstructure:"store" validate:"oneof=memory redis postgres"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

// validate checks the secret when one is configured. Commands that issue
// tokens call RequireSecret.
func (c *SessionConfig) validate() error {
	if c.Secret != "" && len(c.Secret) < minSecretLength {
		return fmt.Errorf("config error: 'session.secret' must be at least %d characters", minSecretLength)
	}
	return nil
}

// RequireSecret fails when no signing secret is configured.
func (c *SessionConfig) RequireSecret() error {
	if c.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required but not set")
	}
	return c.validate()
}

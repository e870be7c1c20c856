// Package middleware resolves the assessment session of each request.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// sessionIDKey is the context key for the resolved session id.
const sessionIDKey ContextKey = "sessionID"

// TokenHeader carries the session token in both directions.
const TokenHeader = "X-Session-Token"

// Tokens issues and verifies session tokens.
type Tokens interface {
	IssueToken(sessionID string) (string, error)
	ValidateToken(token string) (sessionID string, expiresAt time.Time, err error)
}

// Ensurer returns the session for id, creating one when id is empty or unknown.
type Ensurer interface {
	EnsureSessionID(ctx context.Context, id string) (sessionID string, created bool, err error)
}

// EnsurerFunc adapts a function to Ensurer.
type EnsurerFunc func(ctx context.Context, id string) (string, bool, error)

func (f EnsurerFunc) EnsureSessionID(ctx context.Context, id string) (string, bool, error) {
	return f(ctx, id)
}

// SessionOptions configures Session.
type SessionOptions struct {
	CookieName string
	// MaxAge is the cookie lifetime. A token with less than half of it left
	// is reissued.
	MaxAge time.Duration
	Secure bool
	// OnError writes the response when no session could be resolved.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Session resolves the caller's session from the token header, a bearer
// token or the session cookie. A missing, invalid or stale token gets a new
// session. The token is echoed in TokenHeader and the cookie on every response,
// so active sessions keep a valid token while the store TTL slides.
func Session(tokens Tokens, ensurer Ensurer, opts SessionOptions) func(http.Handler) http.Handler {
	onError := opts.OnError
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Session unavailable", http.StatusInternalServerError)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := tokenFromRequest(r, opts.CookieName)

			var (
				claimed   string
				expiresAt time.Time
			)
			if presented != "" {
				if id, exp, err := tokens.ValidateToken(presented); err == nil {
					claimed, expiresAt = id, exp
				}
			}

			sessionID, created, err := ensurer.EnsureSessionID(r.Context(), claimed)
			if err != nil {
				onError(w, r, err)
				return
			}

			token := presented
			if created || claimed == "" || time.Until(expiresAt) < opts.MaxAge/2 {
				token, err = tokens.IssueToken(sessionID)
				if err != nil {
					onError(w, r, fmt.Errorf("failed to issue session token: %w", err))
					return
				}
			}

			w.Header().Set(TokenHeader, token)
			if opts.CookieName != "" {
				http.SetCookie(w, &http.Cookie{
					Name:     opts.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(opts.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest prefers the explicit header, then a bearer token, then the cookie.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token
	}

	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}

	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}

// GetSessionID extracts the resolved session id from the request context.
func GetSessionID(r *http.Request) (string, error) {
	id, ok := r.Context().Value(sessionIDKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("session ID not found in request context")
	}
	return id, nil
}

// SessionIDKey returns the context key for the session id (for testing purposes).
func SessionIDKey() ContextKey {
	return sessionIDKey
}

package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg *Config) (*Limiter, *clock) {
	t.Helper()
	cfg.CleanupInterval = 0
	l := NewLimiter(cfg)
	t.Cleanup(l.Stop)
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l.now = c.Now
	return l, c
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	for i := 0; i < 10; i++ {
		allowed, info := l.Allow("127.0.0.1", "/api/profile/questions", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := l.Allow("127.0.0.1", "/api/profile/questions", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.InDelta(t, 6*time.Second, info.RetryAfter, float64(time.Millisecond))
}

func TestLimiter_Refill(t *testing.T) {
	l, c := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 60, DefaultWindow: time.Minute})

	for i := 0; i < 60; i++ {
		allowed, _ := l.Allow("client", "/x", "GET")
		require.True(t, allowed)
	}
	allowed, _ := l.Allow("client", "/x", "GET")
	require.False(t, allowed)

	c.Advance(time.Second)
	allowed, _ = l.Allow("client", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("client", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	l, _ := newTestLimiter(t, NewConfig(true, 1000, time.Minute))

	for i := 0; i < 2; i++ {
		allowed, info := l.Allow("client", "/api/profile/generate-questions", "POST")
		require.True(t, allowed)
		assert.Equal(t, 10, info.Limit)
	}
	allowed, info := l.Allow("client", "/api/profile/generate-questions", "POST")
	assert.False(t, allowed)
	assert.Positive(t, info.RetryAfter)

	// Other routes and clients have their own buckets.
	allowed, _ = l.Allow("client", "/api/profile/questions", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("other", "/api/profile/generate-questions", "POST")
	assert.True(t, allowed)
}

func TestLimiter_Unlimited(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})

	for i := 0; i < 5; i++ {
		for _, path := range []string{"/health", "/metrics"} {
			allowed, info := l.Allow("client", path, "GET")
			assert.True(t, allowed)
			assert.Zero(t, info.Limit)
		}
		allowed, _ := l.Allow("client", "/api/profile/answers", "OPTIONS")
		assert.True(t, allowed)
	}
}

func TestLimiter_TrustedAndDisabled(t *testing.T) {
	trusted, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Trusted:       map[string]bool{"10.0.0.1": true},
	})
	disabled, _ := newTestLimiter(t, &Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Minute})

	for i := 0; i < 3; i++ {
		allowed, _ := trusted.Allow("10.0.0.1", "/x", "GET")
		assert.True(t, allowed)
		allowed, _ = disabled.Allow("anyone", "/x", "GET")
		assert.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("client", "/x", "GET"); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(50), granted.Load())
}

func TestLimiter_Cleanup(t *testing.T) {
	l, c := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 5, DefaultWindow: time.Minute, IdleTTL: time.Hour})

	l.Allow("stale", "/x", "GET")
	c.Advance(2 * time.Hour)
	l.Allow("fresh", "/x", "GET")

	l.cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.buckets, 1)
	_, ok := l.buckets["fresh|GET|*"]
	assert.True(t, ok)
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/api/profile/answers", Method: "POST", Limit: 1, Window: time.Minute},
		{Path: "/api/", Method: "POST", Limit: 2, Window: time.Minute},
	}

	assert.Equal(t, 1, MatchEndpoint("/api/profile/answers", "POST", configs).Limit)
	assert.Equal(t, 2, MatchEndpoint("/api/other", "POST", configs).Limit)
	assert.Nil(t, MatchEndpoint("/api/other", "GET", configs))
	assert.Zero(t, MatchEndpoint("/health", "GET", configs).Limit)
}

func TestStop_Idempotent(t *testing.T) {
	l := NewLimiter(nil)
	l.Stop()
	l.Stop()
}

// Package server provides the HTTP API of the career assessment service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ujjwalparashar30/github-assisstance/internal/assessment"
	"github.com/ujjwalparashar30/github-assisstance/internal/logger"
	"github.com/ujjwalparashar30/github-assisstance/internal/metrics"
	"github.com/ujjwalparashar30/github-assisstance/internal/server/middleware"
	"github.com/ujjwalparashar30/github-assisstance/internal/server/ratelimit"
	"github.com/ujjwalparashar30/github-assisstance/internal/types"
)

// RequestIDHeader carries the request id in responses.
const RequestIDHeader = "X-Request-ID"

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	orchestrator    *assessment.Orchestrator
	tokens          *TokenService
	rateLimiter     *ratelimit.Limiter
	logger          *zap.Logger
	maxUploadBytes  int64
	allowedOrigin   string
	shutdownTimeout time.Duration
}

// Config holds server configuration
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigin   string

	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string
	SecureCookie  bool

	// MaxUploadBytes bounds the résumé file itself; the request body may be
	// slightly larger for multipart framing.
	MaxUploadBytes int64
	RateLimit      *ratelimit.Config
}

// New creates a new server instance
func New(cfg Config, orchestrator *assessment.Orchestrator, log *zap.Logger) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	s := &Server{
		orchestrator:    orchestrator,
		tokens:          NewTokenService(cfg.SessionSecret, cfg.SessionTTL),
		rateLimiter:     ratelimit.NewLimiter(cfg.RateLimit),
		logger:          logger.OrNop(log),
		maxUploadBytes:  cfg.MaxUploadBytes,
		allowedOrigin:   cfg.AllowedOrigin,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	// Profile API, every route resolves a session first.
	api := http.NewServeMux()
	api.HandleFunc("GET /api/profile/questions", s.handleListQuestions)
	api.HandleFunc("POST /api/profile/answers", s.handleSubmitAnswers)
	api.HandleFunc("POST /api/profile/upload-resume", s.handleUploadResume)
	api.HandleFunc("POST /api/profile/generate-questions", s.handleGenerateQuestions)
	api.HandleFunc("POST /api/profile/final-analysis", s.handleFinalAnalysis)
	api.HandleFunc("GET /api/profile/session", s.handleSession)

	withSession := middleware.Session(s.tokens, middleware.EnsurerFunc(s.ensureSessionID), middleware.SessionOptions{
		CookieName: cfg.CookieName,
		MaxAge:     cfg.SessionTTL,
		Secure:     cfg.SecureCookie,
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			s.errorResponse(w, r, err)
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/api/profile/", withSession(api))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /{$}", s.handleRoot)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRequestID(s.withRateLimit(s.withLogging(s.withCORS(mux)))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		defer s.rateLimiter.Stop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("server stopped")
	return err
}

func (s *Server) ensureSessionID(ctx context.Context, id string) (string, bool, error) {
	sess, created, err := s.orchestrator.EnsureSession(ctx, id)
	if err != nil {
		return "", false, err
	}
	return sess.ID, created, nil
}

// withCORS adds CORS and basic security headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.allowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.TokenHeader)
		h.Set("Access-Control-Expose-Headers", middleware.TokenHeader+", "+RequestIDHeader)
		if s.allowedOrigin != "*" {
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging logs each request and records HTTP metrics
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method).Observe(duration.Seconds())

		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.String(logger.FieldRequestID, requestID(r)),
		)
	})
}

type requestIDKey struct{}

// withRequestID tags each request with an id, reusing a valid incoming one.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// handleRoot returns a plain greeting
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello, World!"))
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// successResponse writes a success envelope
func (s *Server) successResponse(w http.ResponseWriter, data any, message, nextStep string) {
	s.jsonResponse(w, http.StatusOK, types.Response{
		Success:  true,
		Data:     data,
		Message:  message,
		NextStep: nextStep,
	})
}

// errorResponse writes an error envelope with the status derived from err
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	detail := ""

	var assessmentErr *assessment.Error
	if errors.As(err, &assessmentErr) {
		message = assessmentErr.Message
		if assessmentErr.Kind == assessment.KindUpstream && assessmentErr.Err != nil {
			detail = assessmentErr.Err.Error()
		}
	}
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusGatewayTimeout {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String(logger.FieldRequestID, requestID(r)),
			zap.Error(err))
		message = "Internal server error"
	}

	s.jsonResponse(w, status, types.Response{
		Success: false,
		Error:   message,
		Code:    errorCode(err),
		Detail:  detail,
	})
}

// extractClientID returns the client IP from RemoteAddr.
// X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	retryAfter := int(info.RetryAfter.Seconds())
	if info.RetryAfter > 0 && retryAfter == 0 {
		retryAfter = 1
	}
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit),
		zap.Int("retry_after", retryAfter))

	s.jsonResponse(w, http.StatusTooManyRequests, types.Response{
		Success: false,
		Error:   "Rate limit exceeded. Please try again later.",
		Code:    "rate_limit_exceeded",
	})
}

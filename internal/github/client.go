package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujjwalparashar30/github-assisstance/internal/logger"
	"github.com/ujjwalparashar30/github-assisstance/internal/metrics"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"
	// DefaultPerPage caps the number of recommended issues.
	DefaultPerPage = 10
	// DefaultTimeout bounds a single search request.
	DefaultTimeout = 15 * time.Second

	apiVersion   = "2022-11-28"
	maxErrorBody = 512
)

// ErrLookupFailed wraps every failed search.
var ErrLookupFailed = errors.New("issue lookup failed")

// Error describes a failed search request.
type Error struct {
	Query      string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrLookupFailed, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrLookupFailed, msg)
}

// Is makes every *Error match ErrLookupFailed.
func (e *Error) Is(target error) bool {
	return target == ErrLookupFailed
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Label is an issue label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// User is the issue author.
type User struct {
	Login   string `json:"login"`
	HTMLURL string `json:"html_url,omitempty"`
}

// Issue is one search hit, in GitHub's JSON shape.
type Issue struct {
	ID            int64     `json:"id"`
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	HTMLURL       string    `json:"html_url"`
	RepositoryURL string    `json:"repository_url"`
	State         string    `json:"state"`
	Comments      int       `json:"comments"`
	Labels        []Label   `json:"labels"`
	User          *User     `json:"user,omitempty"`
	Body          string    `json:"body,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type searchResponse struct {
	TotalCount        int     `json:"total_count"`
	IncompleteResults bool    `json:"incomplete_results"`
	Items             []Issue `json:"items"`
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Token is optional; unauthenticated searches have a lower rate limit.
	Token      string
	PerPage    int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client searches GitHub issues.
type Client struct {
	baseURL string
	token   string
	perPage int
	http    *http.Client
	logger  *zap.Logger
}

// NewClient returns a Client, filling unset Config fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		perPage: cfg.PerPage,
		http:    httpClient,
		logger:  logger.OrNop(cfg.Logger),
	}
}

// Recommend searches for open issues matching keywords at the given skill tier.
func (c *Client) Recommend(ctx context.Context, keywords []string, skillLevel string) ([]Issue, error) {
	return c.Search(ctx, BuildQuery(keywords, LabelsForSkillLevel(skillLevel)))
}

// Search runs a raw issue search, most recently updated first.
func (c *Client) Search(ctx context.Context, query string) (issues []Issue, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("github", "search", start, err) }()

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "updated")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(c.perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/issues?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Query: query, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Query: query, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("github search rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("query", query),
			zap.String("body", logger.TruncateForLog(string(body), 200)))
		return nil, &Error{Query: query, StatusCode: resp.StatusCode, Message: "unexpected response"}
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Query: query, Message: "failed to decode response", Cause: err}
	}

	if out.Items == nil {
		out.Items = []Issue{}
	}
	c.logger.Debug("github search completed",
		zap.String("query", query),
		zap.Int("total", out.TotalCount),
		zap.Int("returned", len(out.Items)))
	return out.Items, nil
}

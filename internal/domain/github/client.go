// Package github browses repositories through the GitHub REST API and keeps
// the user's saved repository list.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guregu/null/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gobarber/gobarber/pkg/pagination"
)

const (
	DefaultBaseURL = "https://api.github.com"

	apiVersion      = "2022-11-28"
	cacheSize       = 256
	defaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 4096
)

var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrRateLimited        = errors.New("github rate limit exceeded")
)

type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type Repository struct {
	FullName        string      `json:"full_name"`
	Description     null.String `json:"description"`
	HTMLURL         string      `json:"html_url"`
	StargazersCount int         `json:"stargazers_count"`
	ForksCount      int         `json:"forks_count"`
	OpenIssuesCount int         `json:"open_issues_count"`
	Owner           Owner       `json:"owner"`
}

type IssueUser struct {
	Login string `json:"login"`
}

type Issue struct {
	ID      int64     `json:"id"`
	Number  int       `json:"number"`
	Title   string    `json:"title"`
	HTMLURL string    `json:"html_url"`
	User    IssueUser `json:"user"`
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken authenticates requests, raising GitHub's rate limit.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// WithRateLimit paces requests to rps per second. Zero or less disables pacing.
func WithRateLimit(rps float64) Option {
	return func(cl *Client) { cl.rps = rps }
}

// WithCacheTTL keeps lookups for ttl. Zero disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cl *Client) { cl.cacheTTL = ttl }
}

func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// Client reads repositories and issues. Lookups are cached and requests are
// paced client-side.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	rps        float64
	cacheTTL   time.Duration
	logger     zerolog.Logger

	limiter *rate.Limiter
	repos   *expirable.LRU[string, Repository]
	issues  *expirable.LRU[string, []Issue]
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse github url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("github url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.limiter = rate.NewLimiter(rate.Inf, 1)
	if c.rps > 0 {
		burst := int(c.rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(c.rps), burst)
	}
	if c.cacheTTL > 0 {
		c.repos = expirable.NewLRU[string, Repository](cacheSize, nil, c.cacheTTL)
		c.issues = expirable.NewLRU[string, []Issue](cacheSize, nil, c.cacheTTL)
	}
	return c, nil
}

// Repository handles GET repos/{owner}/{name}.
func (c *Client) Repository(ctx context.Context, fullName string) (Repository, error) {
	owner, name, err := SplitFullName(fullName)
	if err != nil {
		return Repository{}, err
	}
	key := strings.ToLower(fullName)
	if c.repos != nil {
		if r, ok := c.repos.Get(key); ok {
			return r, nil
		}
	}

	var repo Repository
	if err := c.get(ctx, "repos/"+owner+"/"+name, nil, &repo); err != nil {
		return Repository{}, fmt.Errorf("fetch repository %s: %w", fullName, err)
	}
	if c.repos != nil {
		c.repos.Add(key, repo)
	}
	return repo, nil
}

// Issues handles GET repos/{owner}/{name}/issues for one page.
func (c *Client) Issues(ctx context.Context, fullName string, page pagination.Params) ([]Issue, error) {
	owner, name, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}
	q := page.GitHub()
	key := strings.ToLower(fullName) + "?" + q.Encode()
	if c.issues != nil {
		if is, ok := c.issues.Get(key); ok {
			return is, nil
		}
	}

	var issues []Issue
	if err := c.get(ctx, "repos/"+owner+"/"+name+"/issues", q, &issues); err != nil {
		return nil, fmt.Errorf("fetch issues of %s: %w", fullName, err)
	}
	if c.issues != nil {
		c.issues.Add(key, issues)
	}
	return issues, nil
}

// Forget drops cached lookups of fullName.
func (c *Client) Forget(fullName string) {
	if c.repos == nil {
		return
	}
	key := strings.ToLower(fullName)
	c.repos.Remove(key)
	for _, k := range c.issues.Keys() {
		if strings.HasPrefix(k, key+"?") {
			c.issues.Remove(k)
		}
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("path", u.Path).
		Int("status", resp.StatusCode).
		Str("rate_remaining", resp.Header.Get("X-RateLimit-Remaining")).
		Dur("latency", time.Since(start)).
		Msg("github request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRepositoryNotFound
	case (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests) &&
		resp.Header.Get("X-RateLimit-Remaining") == "0":
		return ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &msg)
		return fmt.Errorf("github %s: status %d: %s", u.Path, resp.StatusCode, msg.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

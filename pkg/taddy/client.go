// Package taddy looks up podcast transcripts through the Taddy GraphQL API.
//
// A lookup resolves the series by RSS feed URL, the episode by GUID within
// that series, and then the episode transcript. The free tier only reads
// transcripts that already exist. The business tier may request on-demand
// transcription and pays credits for it.
package taddy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"podnotes/pkg/httpclient"
	"podnotes/pkg/retry"
)

const (
	// SourceName tags results produced by this provider.
	SourceName     = "taddy"
	DefaultBaseURL = "https://api.taddy.org"

	defaultTimeout = 30 * time.Second
)

// Tier selects the account plan the client behaves under.
type Tier string

const (
	TierFree     Tier = "free"
	TierBusiness Tier = "business"
)

// ParseTier accepts "free" or "business", case-insensitively. Empty means free.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(TierFree):
		return TierFree, nil
	case string(TierBusiness):
		return TierBusiness, nil
	default:
		return "", fmt.Errorf("taddy: unknown tier %q", s)
	}
}

// Config captures the API credentials and plan.
type Config struct {
	BaseURL string
	UserID  string
	APIKey  string
	Tier    Tier
}

// Doer sends HTTP requests. *httpclient.HTTPClient satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Taddy API.
type Client struct {
	cfg    Config
	http   Doer
	policy retry.Policy
	logger *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithRetryPolicy overrides the default retry policy (2 attempts).
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

var (
	ErrMissingCredentials = errors.New("taddy: user id and api key are required")
)

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.UserID == "" || cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Tier == "" {
		cfg.Tier = TierFree
	}

	c := &Client{
		cfg:    cfg,
		http:   httpclient.NewClient(httpclient.APIClient, httpclient.WithTimeout(defaultTimeout)),
		policy: retry.DefaultPolicy(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the provider in results and logs.
func (c *Client) Name() string { return SourceName }

// Tier reports the configured plan.
func (c *Client) Tier() Tier { return c.cfg.Tier }

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// query runs one GraphQL operation with retry and decodes data into out.
func (c *Client) query(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("taddy %s: encode request: %w", op, err)
	}

	return retry.Do(ctx, c.policy, "taddy "+op, func(ctx context.Context) error {
		return c.post(ctx, body, out)
	})
}

func (c *Client) post(ctx context.Context, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-USER-ID", c.cfg.UserID)
	req.Header.Set("X-API-KEY", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.StatusError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		e := parsed.Errors[0]
		if e.Extensions.Code != "" {
			return fmt.Errorf("graphql: %s: %s", e.Extensions.Code, e.Message)
		}
		return fmt.Errorf("graphql: %s", e.Message)
	}
	if len(parsed.Data) == 0 || string(parsed.Data) == "null" {
		return errors.New("graphql: empty data")
	}
	if err := json.Unmarshal(parsed.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

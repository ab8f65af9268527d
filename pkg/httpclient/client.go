package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientType represents the header profile a client sends
type ClientType string

const (
	// APIClient talks to JSON/GraphQL APIs
	APIClient ClientType = "api"

	// FeedClient fetches RSS feeds and audio metadata. Podcast hosts behind
	// Cloudflare block browser-like User-Agents but allow curl-style ones.
	FeedClient ClientType = "feed"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "podnotes-transcript-worker/1.0"
	feedUserAgent    = "curl/8.7.1"
	maxRedirects     = 10
)

// HTTPClient wraps an http.Client with a header profile
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
	userAgent  string
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithTimeout sets the overall per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header for API clients
func WithUserAgent(ua string) Option {
	return func(c *HTTPClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTransport swaps the underlying round tripper (tests use httptest servers instead)
func WithTransport(rt http.RoundTripper) Option {
	return func(c *HTTPClient) {
		c.client.Transport = rt
	}
}

// NewClient creates a new HTTP client with the specified type
func NewClient(clientType ClientType, opts ...Option) *HTTPClient {
	client := &http.Client{
		Timeout: DefaultTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	c := &HTTPClient{
		client:     client,
		clientType: clientType,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes an HTTP request with the appropriate headers for the client type
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// Get is a convenience method for GET requests
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Head is a convenience method for HEAD requests
func (c *HTTPClient) Head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Standard returns a plain *http.Client that applies this client's headers,
// for libraries that accept an *http.Client directly.
func (c *HTTPClient) Standard() *http.Client {
	base := c.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout:       c.client.Timeout,
		CheckRedirect: c.client.CheckRedirect,
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			c.setHeaders(req)
			return base.RoundTrip(req)
		}),
	}
}

// StatusError formats a non-2xx response as "HTTP <code>: <body>", reading at
// most 512 bytes of the body.
func StatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
}

// setHeaders sets the appropriate headers based on client type
func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case APIClient:
		req.Header.Set("User-Agent", c.userAgent)
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}

	case FeedClient:
		req.Header.Set("User-Agent", feedUserAgent)

	default:
		// Default: use Go's default User-Agent
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Package deepgram transcribes episode audio directly from its URL. It is the
// fallback used when no provider transcript exists.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"podnotes/pkg/domain"
	"podnotes/pkg/httpclient"
)

const (
	// SourceName tags transcripts produced by the fallback.
	SourceName     = "fallback"
	DefaultBaseURL = "https://api.deepgram.com"
	DefaultModel   = "nova-2"

	defaultMaxFileSizeMB = 200
	// Transcribing a long episode can take minutes.
	defaultTimeout = 10 * time.Minute
	bytesPerMB     = 1024 * 1024
)

// Distinct failure messages so callers can tell causes apart in logs.
const (
	ErrMsgRateLimited = "fallback rate limited (HTTP 429)"
	ErrMsgTimeout     = "fallback transcription timed out"
)

// Config captures the API credentials and limits.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxFileSizeMB float64
}

// Doer sends HTTP requests. *httpclient.HTTPClient satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the Deepgram pre-recorded transcription API.
type Client struct {
	cfg    Config
	api    Doer
	audio  Doer
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the client used for the transcription API.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.api = d
		}
	}
}

// WithAudioClient overrides the client used for HEAD requests to audio hosts.
func WithAudioClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.audio = d
		}
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

var ErrMissingAPIKey = errors.New("deepgram: api key is required")

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = defaultMaxFileSizeMB
	}

	c := &Client{
		cfg:    cfg,
		api:    httpclient.NewClient(httpclient.APIClient, httpclient.WithTimeout(defaultTimeout)),
		audio:  httpclient.NewClient(httpclient.FeedClient),
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TranscribeEpisode checks the audio size and submits the URL for
// transcription. Failures are reported in the result, never as a panic or
// error return. FileSizeMB and ProcessingTimeMs are set whenever known.
func (c *Client) TranscribeEpisode(ctx context.Context, audioURL string) domain.FallbackResult {
	start := c.now()
	result := c.transcribe(ctx, audioURL)
	result.ProcessingTimeMs = c.now().Sub(start).Milliseconds()

	if result.Success {
		c.logger.Info("Deepgram: transcription complete",
			"size_mb", result.FileSizeMB, "elapsed_ms", result.ProcessingTimeMs)
	} else {
		c.logger.Warn("Deepgram: transcription failed",
			"error", result.Error, "size_mb", result.FileSizeMB, "elapsed_ms", result.ProcessingTimeMs)
	}
	return result
}

func (c *Client) transcribe(ctx context.Context, audioURL string) domain.FallbackResult {
	if err := validateAudioURL(audioURL); err != nil {
		return domain.FallbackResult{Error: err.Error()}
	}

	sizeMB, err := c.contentLengthMB(ctx, audioURL)
	if err != nil {
		return domain.FallbackResult{Error: err.Error()}
	}
	if sizeMB > c.cfg.MaxFileSizeMB {
		return domain.FallbackResult{
			FileSizeMB: sizeMB,
			Error:      fmt.Sprintf("file too large: %.1f MB exceeds limit of %.0f MB", sizeMB, c.cfg.MaxFileSizeMB),
		}
	}

	text, err := c.submit(ctx, audioURL)
	if err != nil {
		return domain.FallbackResult{FileSizeMB: sizeMB, Error: classifyError(err)}
	}
	if text == "" {
		return domain.FallbackResult{FileSizeMB: sizeMB, Error: "no transcript in response"}
	}
	return domain.FallbackResult{Success: true, Transcript: text, FileSizeMB: sizeMB}
}

func validateAudioURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid audio URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported audio URL scheme %q", u.Scheme)
	}
	return nil
}

// contentLengthMB reads Content-Length from a HEAD request.
func (c *Client) contentLengthMB(ctx context.Context, audioURL string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, audioURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build HEAD request: %w", err)
	}
	resp, err := c.audio.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD audio: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HEAD audio: HTTP %d", resp.StatusCode)
	}
	header := resp.Header.Get("Content-Length")
	if header == "" && resp.ContentLength > 0 {
		header = strconv.FormatInt(resp.ContentLength, 10)
	}
	if header == "" {
		return 0, errors.New("audio size unknown: missing Content-Length")
	}
	n, err := strconv.ParseInt(header, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("audio size unknown: bad Content-Length %q", header)
	}
	return float64(n) / bytesPerMB, nil
}

type listenResponse struct {
	Results *struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	q := url.Values{}
	q.Set("model", c.cfg.Model)
	q.Set("diarize", "true")
	q.Set("filler_words", "false")
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	endpoint := c.cfg.BaseURL + "/v1/listen?" + q.Encode()

	body, err := json.Marshal(map[string]string{"url": audioURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)

	resp, err := c.api.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", httpclient.StatusError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var parsed listenResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Results == nil || len(parsed.Results.Channels) == 0 {
		return "", nil
	}
	alts := parsed.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(alts[0].Transcript), nil
}

func classifyError(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "429"):
		return ErrMsgRateLimited
	case strings.Contains(msg, "504"), strings.Contains(lower, "timeout"),
		strings.Contains(lower, "deadline exceeded"):
		return ErrMsgTimeout
	default:
		return msg
	}
}

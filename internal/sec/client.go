// Package sec fetches periodic filings from SEC EDGAR and extracts the
// narrative sections used to ground analysis reports.
package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL hosts company_tickers.json and the filing archives
	DefaultBaseURL = "https://www.sec.gov"
	// DefaultDataURL hosts the submissions API
	DefaultDataURL = "https://data.sec.gov"
	// DefaultRateLimit stays under EDGAR's 10 requests per second policy
	DefaultRateLimit = 5
	// DefaultMaxChars caps the excerpt handed to the narrative model
	DefaultMaxChars = 8000
)

// Client is an EDGAR client. EDGAR rejects requests without a descriptive User-Agent.
type Client struct {
	baseURL    string
	dataURL    string
	userAgent  string
	maxChars   int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger

	mu      sync.Mutex
	ciks    map[string]string // ticker -> zero-padded CIK
	ciksAt  time.Time
	cikTTL  time.Duration
	formSet []string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides both the www and data hosts, for tests and mirrors.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
			c.dataURL = c.baseURL
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// WithMaxChars caps the extracted excerpt length.
func WithMaxChars(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// NewClient creates an EDGAR client identifying itself with userAgent.
func NewClient(userAgent string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		dataURL:    DefaultDataURL,
		userAgent:  userAgent,
		maxChars:   DefaultMaxChars,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		cikTTL:     24 * time.Hour,
		formSet:    []string{"10-K", "10-Q"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "identity")

	if c.logger != nil {
		c.logger.Debug().Str("url", url).Msg("EDGAR request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("EDGAR %s: status %d", url, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBytes))
}

func (c *Client) fetchJSON(ctx context.Context, url string, result interface{}) error {
	body, err := c.fetch(ctx, url, 64<<20)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

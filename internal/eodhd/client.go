package eodhd

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

	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the EODHD API.
	DefaultBaseURL = "https://eodhd.com/api"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	// DefaultBreakerFailures is the consecutive-failure count that opens the circuit.
	DefaultBreakerFailures = 5

	// DefaultBreakerTimeout is how long the circuit stays open before probing.
	DefaultBreakerTimeout = 60 * time.Second
)

var errCancelled = errors.New("request cancelled")

// Client is an EODHD API client.
type Client struct {
	baseURL         string
	apiKey          string
	httpClient      *http.Client
	logger          arbor.ILogger
	limiter         *rate.Limiter
	breaker         *gobreaker.CircuitBreaker
	breakerFailures uint32
	breakerTimeout  time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
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
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithBreaker configures the circuit breaker guarding the API.
func WithBreaker(consecutiveFailures int, openTimeout time.Duration) ClientOption {
	return func(c *Client) {
		if consecutiveFailures > 0 {
			c.breakerFailures = uint32(consecutiveFailures)
		}
		if openTimeout > 0 {
			c.breakerTimeout = openTimeout
		}
	}
}

// NewClient creates a new EODHD API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:         rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		breakerFailures: DefaultBreakerFailures,
		breakerTimeout:  DefaultBreakerTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	failures := c.breakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "eodhd",
		MaxRequests: 1,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !isProviderFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if c.logger != nil {
				c.logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("EODHD circuit breaker state changed")
			}
		},
	})

	return c
}

// BreakerState returns the circuit breaker state, for diagnostics
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// get performs a GET request to the API through the circuit breaker.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doGet(ctx, path, params, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("EODHD unavailable (%s): %w", path, err)
	}
	if errors.Is(err, errCancelled) {
		return ctx.Err()
	}
	return err
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return errCancelled
		}
		return &RateLimitError{RetryAfter: time.Second}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("EODHD API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errCancelled
		}
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func setRange(values url.Values, params *queryParams) {
	if !params.From.IsZero() {
		values.Set("from", params.From.Format("2006-01-02"))
	}
	if !params.To.IsZero() {
		values.Set("to", params.To.Format("2006-01-02"))
	}
}

// GetEOD retrieves end-of-day price data for a symbol.
// Symbol format: TICKER.EXCHANGE (e.g., "AAPL.US", "VIX.INDX")
func (c *Client) GetEOD(ctx context.Context, symbol string, opts ...QueryOption) (EODResponse, error) {
	params := buildParams(queryParams{Period: "d", Order: "a"}, opts)

	values := url.Values{}
	setRange(values, params)
	values.Set("period", params.Period)
	values.Set("order", params.Order)

	var result EODResponse
	if err := c.get(ctx, "/eod/"+symbol, values, &result); err != nil {
		return nil, err
	}

	for i := range result {
		if t, err := time.Parse("2006-01-02", result[i].DateStr); err == nil {
			result[i].Date = t
		}
	}

	return result, nil
}

// GetFundamentals retrieves fundamental data for a symbol.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*FundamentalsResponse, error) {
	var result FundamentalsResponse
	if err := c.get(ctx, "/fundamentals/"+symbol, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetNews retrieves news for one or more symbols.
// Symbols should be in TICKER.EXCHANGE format.
func (c *Client) GetNews(ctx context.Context, symbols []string, opts ...QueryOption) (NewsResponse, error) {
	params := buildParams(queryParams{Limit: 50}, opts)

	values := url.Values{}
	values.Set("s", strings.Join(symbols, ","))
	if params.Limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", params.Limit))
	}
	setRange(values, params)

	var result NewsResponse
	if err := c.get(ctx, "/news", values, &result); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Date = parseFlexibleDate(result[i].DateStr)
	}

	return result, nil
}

// GetInsiderTransactions retrieves SEC Form 4 insider transactions for a symbol.
func (c *Client) GetInsiderTransactions(ctx context.Context, symbol string, opts ...QueryOption) (InsiderResponse, error) {
	params := buildParams(queryParams{Limit: 100}, opts)

	values := url.Values{}
	values.Set("code", symbol)
	if params.Limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", params.Limit))
	}
	setRange(values, params)

	var result InsiderResponse
	if err := c.get(ctx, "/insider-transactions", values, &result); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].TransactionDate = parseFlexibleDate(result[i].TransactionDateStr)
		if result[i].TransactionDate.IsZero() {
			result[i].TransactionDate = parseFlexibleDate(result[i].DateStr)
		}
	}

	return result, nil
}

// GetRSI retrieves the relative strength index for a symbol.
func (c *Client) GetRSI(ctx context.Context, symbol string, period int, opts ...QueryOption) (RSIResponse, error) {
	var result RSIResponse
	if err := c.getTechnical(ctx, symbol, "rsi", period, opts, &result); err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Date = parseFlexibleDate(result[i].DateStr)
	}
	return result, nil
}

// GetMACD retrieves the MACD indicator for a symbol.
func (c *Client) GetMACD(ctx context.Context, symbol string, opts ...QueryOption) (MACDResponse, error) {
	var result MACDResponse
	if err := c.getTechnical(ctx, symbol, "macd", 0, opts, &result); err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Date = parseFlexibleDate(result[i].DateStr)
	}
	return result, nil
}

func (c *Client) getTechnical(ctx context.Context, symbol, function string, period int, opts []QueryOption, result interface{}) error {
	params := buildParams(queryParams{Order: "a"}, opts)

	values := url.Values{}
	values.Set("function", function)
	if period > 0 {
		values.Set("period", fmt.Sprintf("%d", period))
	}
	values.Set("order", params.Order)
	setRange(values, params)

	return c.get(ctx, "/technical/"+symbol, values, result)
}

// GetRealTimeQuote retrieves the (delayed) real-time quote for a symbol.
func (c *Client) GetRealTimeQuote(ctx context.Context, symbol string) (*RealTimeQuote, error) {
	var result RealTimeQuote
	if err := c.get(ctx, "/real-time/"+symbol, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetExchangeDetails retrieves trading hours and holidays for an exchange code.
func (c *Client) GetExchangeDetails(ctx context.Context, code string) (*ExchangeDetailsResponse, error) {
	var result ExchangeDetailsResponse
	if err := c.get(ctx, "/exchange-details/"+code, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func parseFlexibleDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Package eodhd provides a client for the EODHD (End of Day Historical Data) API.
// It serves prices, fundamentals, technical indicators, news and insider
// transactions for the analysis pipeline.
package eodhd

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// QueryOption represents an optional parameter for API queries.
type QueryOption func(*queryParams)

// queryParams holds optional query parameters.
type queryParams struct {
	From   time.Time
	To     time.Time
	Period string // d, w, m
	Order  string // a (asc), d (desc)
	Limit  int
}

// WithDateRange sets the date range for the query.
func WithDateRange(from, to time.Time) QueryOption {
	return func(p *queryParams) {
		p.From = from
		p.To = to
	}
}

// WithFrom sets only the start of the date range.
func WithFrom(from time.Time) QueryOption {
	return func(p *queryParams) {
		p.From = from
	}
}

// WithOrder sets the order (a=ascending, d=descending).
func WithOrder(order string) QueryOption {
	return func(p *queryParams) {
		p.Order = order
	}
}

// WithLimit sets the maximum number of results.
func WithLimit(limit int) QueryOption {
	return func(p *queryParams) {
		p.Limit = limit
	}
}

func buildParams(defaults queryParams, opts []QueryOption) *queryParams {
	params := defaults
	for _, opt := range opts {
		opt(&params)
	}
	return &params
}

// APIError represents an error from the EODHD API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EODHD rate limit exceeded, retry after %v", e.RetryAfter)
}

// IsNotFound reports whether err is an API 404, i.e. the symbol has no data
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// isProviderFault reports whether err should count against the circuit breaker.
// Client-side errors (bad symbol, plan restrictions) and cancellations do not.
func isProviderFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errCancelled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

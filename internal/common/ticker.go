// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// Ticker represents a parsed exchange-qualified ticker.
// Format: EXCHANGE:CODE (e.g., "NASDAQ:AAPL", "INDX:VIX")
type Ticker struct {
	// Exchange is the exchange code (e.g., "US", "NYSE", "INDX")
	Exchange string
	// Code is the security code (e.g., "AAPL", "BRK-B")
	Code string
	// Raw is the original ticker string
	Raw string
}

// ExchangeToSuffix maps exchange codes to EODHD API suffixes.
var ExchangeToSuffix = map[string]string{
	"US":     ".US",
	"NYSE":   ".US",
	"NASDAQ": ".US",
	"AMEX":   ".US",
	"INDX":   ".INDX", // volatility and benchmark indices, e.g. VIX
}

// DefaultExchange is used when a ticker carries no exchange prefix.
var DefaultExchange = "US"

// SetDefaultExchange sets the default exchange for parsing tickers.
func SetDefaultExchange(exchange string) {
	if exchange != "" {
		DefaultExchange = strings.ToUpper(exchange)
	}
}

// ParseTicker parses an exchange-qualified ticker string.
// Supports formats:
//   - "NASDAQ:AAPL" -> Exchange="NASDAQ", Code="AAPL"
//   - "NYSE.IBM"    -> Exchange="NYSE", Code="IBM" (only for known exchanges)
//   - "aapl"        -> Exchange=DefaultExchange, Code="AAPL"
//
// EODHD uses CODE.EXCHANGE (e.g., "AAPL.US"); use EODHDSymbol() to convert.
func ParseTicker(ticker string) Ticker {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		return Ticker{
			Exchange: strings.ToUpper(ticker[:idx]),
			Code:     strings.ToUpper(ticker[idx+1:]),
			Raw:      ticker,
		}
	}

	// Dotted prefix only when it names a known exchange, so "BRK.B" stays a code
	if idx := strings.Index(ticker, "."); idx > 0 {
		possibleExchange := strings.ToUpper(ticker[:idx])
		if _, known := ExchangeToSuffix[possibleExchange]; known {
			return Ticker{
				Exchange: possibleExchange,
				Code:     strings.ToUpper(ticker[idx+1:]),
				Raw:      ticker,
			}
		}
	}

	return Ticker{
		Exchange: DefaultExchange,
		Code:     strings.ToUpper(ticker),
		Raw:      ticker,
	}
}

// String returns the canonical EXCHANGE:CODE form.
func (t Ticker) String() string {
	if t.Exchange == "" || t.Code == "" {
		return t.Code
	}
	return t.Exchange + ":" + t.Code
}

// EODHDSymbol returns the symbol in EODHD format (CODE.SUFFIX).
// Unknown exchanges default to the US suffix.
func (t Ticker) EODHDSymbol() string {
	if t.Code == "" {
		return ""
	}
	suffix, ok := ExchangeToSuffix[t.Exchange]
	if !ok {
		suffix = ".US"
	}
	return t.Code + suffix
}

// ParseTickers parses a list of ticker strings, skipping blanks.
func ParseTickers(tickers []string) []Ticker {
	result := make([]Ticker, 0, len(tickers))
	for _, raw := range tickers {
		if t := ParseTicker(raw); t.Code != "" {
			result = append(result, t)
		}
	}
	return result
}

// EODHDSuffixToExchange maps EODHD suffixes back to exchange codes.
var EODHDSuffixToExchange = map[string]string{
	"US":   "US",
	"INDX": "INDX",
}

// ParseEODHDTicker parses an EODHD-style ticker (CODE.SUFFIX) into a Ticker.
// The last dot separates the suffix so share classes like "BRK.B.US" survive.
// A bare code falls back to ParseTicker.
func ParseEODHDTicker(ticker string) Ticker {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	idx := strings.LastIndex(ticker, ".")
	if idx <= 0 || idx == len(ticker)-1 {
		return ParseTicker(ticker)
	}

	suffix := strings.ToUpper(ticker[idx+1:])
	exchange, ok := EODHDSuffixToExchange[suffix]
	if !ok {
		return ParseTicker(ticker)
	}

	return Ticker{
		Exchange: exchange,
		Code:     strings.ToUpper(ticker[:idx]),
		Raw:      ticker,
	}
}

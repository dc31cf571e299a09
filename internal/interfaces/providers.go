package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

// FundamentalsProvider supplies company profile, highlights and financial statements
type FundamentalsProvider interface {
	GetCompanyFundamentals(ctx context.Context, ticker string) (*models.CompanyFundamentals, error)
}

// PriceProvider supplies daily candles, oldest first.
// Symbols may carry an exchange suffix (SPY.US, VIX.INDX); bare tickers default to US.
type PriceProvider interface {
	GetDailyPrices(ctx context.Context, symbol string, sessions int) ([]scorecard.Candle, error)
}

// QuoteProvider supplies the latest price for a symbol
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// IndicatorProvider supplies precomputed technical indicators, oldest first
type IndicatorProvider interface {
	GetRSI(ctx context.Context, ticker string, period int) ([]models.IndicatorPoint, error)
	GetMACD(ctx context.Context, ticker string) ([]models.MACDPoint, error)
}

// NewsProvider supplies sentiment-scored headlines
type NewsProvider interface {
	GetNews(ctx context.Context, ticker string, from, to time.Time) ([]models.NewsArticle, error)
}

// InsiderProvider supplies insider transactions since from, newest first
type InsiderProvider interface {
	GetInsiderTransactions(ctx context.Context, ticker string, from time.Time) ([]models.InsiderTransaction, error)
}

// FilingProvider supplies the latest periodic filing text. Optional.
type FilingProvider interface {
	GetLatestFiling(ctx context.Context, ticker, cik string) (*models.FilingSummary, error)
}

// MarketDataProvider is the full market data surface served by one vendor
type MarketDataProvider interface {
	FundamentalsProvider
	PriceProvider
	QuoteProvider
	IndicatorProvider
	NewsProvider
	InsiderProvider
}

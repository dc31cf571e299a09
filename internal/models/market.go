package models

import (
	"time"

	"github.com/ternarybob/insiderlens/internal/scorecard"
)

// CompanyFundamentals is the provider-neutral slice of fundamentals the pipeline consumes.
// Growth and margin values are fractions (0.25 == 25%).
type CompanyFundamentals struct {
	Ticker      string  `json:"ticker"`
	Name        string  `json:"name"`
	Sector      string  `json:"sector,omitempty"`
	Industry    string  `json:"industry,omitempty"`
	CIK         string  `json:"cik,omitempty"`
	SharesFloat float64 `json:"shares_float,omitempty"`
	MarketCap   float64 `json:"market_cap,omitempty"`

	RevenueGrowthYoY     *float64 `json:"revenue_growth_yoy,omitempty"`
	EPSGrowthYoY         *float64 `json:"eps_growth_yoy,omitempty"`
	ProfitMargin         *float64 `json:"profit_margin,omitempty"`
	PreviousProfitMargin *float64 `json:"previous_profit_margin,omitempty"`
	FreeCashFlow         *float64 `json:"free_cash_flow,omitempty"`
	TotalDebt            *float64 `json:"total_debt,omitempty"`
	TotalEquity          *float64 `json:"total_equity,omitempty"`
}

// DebtToEquity returns total debt over equity, nil when either side is unusable
func (f *CompanyFundamentals) DebtToEquity() *float64 {
	if f == nil || f.TotalDebt == nil || f.TotalEquity == nil || *f.TotalEquity <= 0 {
		return nil
	}
	v := *f.TotalDebt / *f.TotalEquity
	return &v
}

// NewsArticle is a single scored headline
type NewsArticle struct {
	Date      time.Time `json:"date"`
	Title     string    `json:"title"`
	Link      string    `json:"link,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Sentiment *float64  `json:"sentiment,omitempty"` // polarity in [-1, 1]
}

// Quote is a latest-price reading for a symbol
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// IndicatorPoint is one value of a single-line technical indicator
type IndicatorPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// MACDPoint is one reading of the MACD indicator
type MACDPoint struct {
	Date      time.Time `json:"date"`
	MACD      float64   `json:"macd"`
	Signal    float64   `json:"signal"`
	Histogram float64   `json:"histogram"`
}

// CollectedData is everything fetched and derived for one ticker before scoring
type CollectedData struct {
	Ticker          string                 `json:"ticker"`
	Fundamentals    *CompanyFundamentals   `json:"fundamentals,omitempty"`
	Prices          []scorecard.Candle     `json:"prices,omitempty"`
	RSI             []IndicatorPoint       `json:"rsi,omitempty"`
	MACD            []MACDPoint            `json:"macd,omitempty"`
	News            []NewsArticle          `json:"news,omitempty"`
	Insider         []InsiderTransaction   `json:"insider,omitempty"`
	Filing          *FilingSummary         `json:"filing,omitempty"`
	Opportunity     scorecard.Opportunity  `json:"opportunity"`
	InsiderPrice    float64                `json:"insider_price,omitempty"`
	NewsCorrelation *float64               `json:"news_correlation,omitempty"`
	Measurements    scorecard.Measurements `json:"measurements"`
	Warnings        []string               `json:"warnings,omitempty"`
}

// Industry returns the normalised industry of the collected fundamentals
func (d *CollectedData) Industry() string {
	if d == nil || d.Fundamentals == nil {
		return GeneralMarket
	}
	return NormalizeIndustry(d.Fundamentals.Industry)
}

// CurrentPrice returns the latest close, or zero when no prices were collected
func (d *CollectedData) CurrentPrice() float64 {
	if d == nil || len(d.Prices) == 0 {
		return 0
	}
	return d.Prices[len(d.Prices)-1].Close
}

// PreviousClose returns the second-latest close, or zero when unavailable
func (d *CollectedData) PreviousClose() float64 {
	if d == nil || len(d.Prices) < 2 {
		return 0
	}
	return d.Prices[len(d.Prices)-2].Close
}

// StockContext is the evaluator's view of a ticker: measurements plus the core scorecard
type StockContext struct {
	Ticker                string                 `json:"ticker"`
	CompanyName           string                 `json:"company_name"`
	Industry              string                 `json:"industry"`
	OpportunityType       scorecard.Opportunity  `json:"opportunity_type"`
	CurrentPrice          float64                `json:"current_price"`
	PriceChangePercent    *float64               `json:"price_change_percent,omitempty"`
	InsiderPrice          float64                `json:"insider_price,omitempty"`
	DaysSinceInsiderTrade *int                   `json:"days_since_insider_trade,omitempty"`
	Measurements          scorecard.Measurements `json:"measurements"`
	Scorecard             *scorecard.Scorecard   `json:"scorecard,omitempty"`
}

// NarrativeRequest carries everything the narrative generator grounds its report on
type NarrativeRequest struct {
	Context         StockContext   `json:"context"`
	Macro           *MacroAnalysis `json:"macro,omitempty"`
	Filing          *FilingSummary `json:"filing,omitempty"`
	NewsCorrelation *float64       `json:"news_correlation,omitempty"`
	Headlines       []NewsArticle  `json:"headlines,omitempty"`
	RubricPrompt    string         `json:"-"`
	IntegratedScore int            `json:"integrated_score"`
}

package models

import (
	"strings"
	"time"
)

// GeneralMarket is the industry bucket used when a ticker has no usable industry
const GeneralMarket = "General Market"

// MacroRecommendation is the advisor's verdict on the macro backdrop
type MacroRecommendation string

const (
	MacroGood    MacroRecommendation = "good"
	MacroNeutral MacroRecommendation = "neutral"
	MacroRisky   MacroRecommendation = "risky"
	MacroBad     MacroRecommendation = "bad"
)

// ParseMacroRecommendation maps free text onto a recommendation, defaulting to neutral
func ParseMacroRecommendation(s string) MacroRecommendation {
	switch MacroRecommendation(strings.ToLower(strings.TrimSpace(s))) {
	case MacroGood:
		return MacroGood
	case MacroRisky:
		return MacroRisky
	case MacroBad:
		return MacroBad
	default:
		return MacroNeutral
	}
}

// Factor returns the multiplicative adjustment applied to the scorecard score
func (r MacroRecommendation) Factor() float64 {
	switch r {
	case MacroGood:
		return 1.1
	case MacroRisky:
		return 0.8
	case MacroBad:
		return 0.6
	default:
		return 1.0
	}
}

// MarketSnapshot holds the market readings a macro analysis was based on
type MarketSnapshot struct {
	SPYPrice          float64  `json:"spy_price"`
	SPYChangePercent  float64  `json:"spy_change_percent"`
	SPYReturn10d      float64  `json:"spy_return_10d"`
	VIXLevel          float64  `json:"vix_level"`
	VIXInterpretation string   `json:"vix_interpretation"`
	SectorETF         string   `json:"sector_etf,omitempty"`
	SectorReturn10d   float64  `json:"sector_return_10d"`
	SectorVsSPY10d    *float64 `json:"sector_vs_spy_10d,omitempty"`
}

// MacroAnalysis is an industry-scoped record shared across tickers.
// Key: ID. Industry is indexed for reuse lookups.
type MacroAnalysis struct {
	ID             string              `json:"id" badgerhold:"key"`
	Industry       string              `json:"industry" badgerhold:"index"`
	Status         string              `json:"status"`
	MacroScore     int                 `json:"macro_score"`
	MacroFactor    float64             `json:"macro_factor"`
	Recommendation MacroRecommendation `json:"recommendation"`
	Summary        string              `json:"summary,omitempty"`
	Risks          []string            `json:"risks,omitempty"`
	Snapshot       MarketSnapshot      `json:"snapshot"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Macro analysis statuses
const (
	MacroStatusCompleted = "completed"
	MacroStatusDegraded  = "degraded"
)

// NormalizeIndustry collapses empty and "N/A" industries into GeneralMarket
func NormalizeIndustry(industry string) string {
	industry = strings.TrimSpace(industry)
	if industry == "" || strings.EqualFold(industry, "N/A") {
		return GeneralMarket
	}
	return industry
}

package eodhd

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FlexFloat decodes numbers that EODHD sometimes sends as strings, "NA" or null.
type FlexFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = FlexFloat{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "none") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.Value, f.Valid = v, true
	return nil
}

// Ptr returns the value as a pointer, nil when absent
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// EODData represents a single day's end-of-day price data.
type EODData struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// EODResponse is a slice of EODData.
type EODResponse []EODData

// RealTimeQuote is the response of the /real-time endpoint
type RealTimeQuote struct {
	Code          string    `json:"code"`
	Timestamp     int64     `json:"timestamp"`
	Open          FlexFloat `json:"open"`
	High          FlexFloat `json:"high"`
	Low           FlexFloat `json:"low"`
	Close         FlexFloat `json:"close"`
	Volume        FlexFloat `json:"volume"`
	PreviousClose FlexFloat `json:"previousClose"`
	Change        FlexFloat `json:"change"`
	ChangePercent FlexFloat `json:"change_p"`
}

// NewsItem represents a single news article.
type NewsItem struct {
	Date      time.Time      `json:"-"`
	DateStr   string         `json:"date"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Link      string         `json:"link"`
	Symbols   []string       `json:"symbols"`
	Tags      []string       `json:"tags"`
	Sentiment *NewsSentiment `json:"sentiment,omitempty"`
}

// NewsSentiment represents sentiment analysis data for news.
type NewsSentiment struct {
	Polarity float64 `json:"polarity"`
	Neg      float64 `json:"neg"`
	Neu      float64 `json:"neu"`
	Pos      float64 `json:"pos"`
}

// NewsResponse is a slice of NewsItem.
type NewsResponse []NewsItem

// InsiderTransaction is one Form 4 row from /insider-transactions.
type InsiderTransaction struct {
	Code                 string    `json:"code"`
	DateStr              string    `json:"date"`
	ReportDate           string    `json:"reportDate"`
	OwnerCik             string    `json:"ownerCik"`
	OwnerName            string    `json:"ownerName"`
	OwnerRelationship    string    `json:"ownerRelationship"`
	OwnerTitle           string    `json:"ownerTitle"`
	TransactionDate      time.Time `json:"-"`
	TransactionDateStr   string    `json:"transactionDate"`
	TransactionCode      string    `json:"transactionCode"` // P purchase, S sale, others ignored
	TransactionAmount    FlexFloat `json:"transactionAmount"`
	TransactionPrice     FlexFloat `json:"transactionPrice"`
	AcquiredDisposed     string    `json:"transactionAcquiredDisposed"` // A or D
	PostTransactionCount FlexFloat `json:"postTransactionAmount"`
	Link                 string    `json:"link"`
}

// InsiderResponse is a slice of InsiderTransaction.
type InsiderResponse []InsiderTransaction

// RSIPoint is one value from /technical?function=rsi
type RSIPoint struct {
	Date    time.Time `json:"-"`
	DateStr string    `json:"date"`
	RSI     FlexFloat `json:"rsi"`
}

// RSIResponse is a slice of RSIPoint.
type RSIResponse []RSIPoint

// MACDPoint is one value from /technical?function=macd
type MACDPoint struct {
	Date       time.Time `json:"-"`
	DateStr    string    `json:"date"`
	MACD       FlexFloat `json:"macd"`
	Signal     FlexFloat `json:"signal"`
	Divergence FlexFloat `json:"divergence"`
}

// MACDResponse is a slice of MACDPoint.
type MACDResponse []MACDPoint

// FundamentalsResponse is the subset of /fundamentals the pipeline reads.
type FundamentalsResponse struct {
	General     *GeneralInfo `json:"General"`
	Highlights  *Highlights  `json:"Highlights"`
	SharesStats *SharesStats `json:"SharesStats"`
	Financials  *Financials  `json:"Financials"`
}

// GeneralInfo contains general company information.
type GeneralInfo struct {
	Code        string                 `json:"Code"`
	Type        string                 `json:"Type"`
	Name        string                 `json:"Name"`
	Exchange    string                 `json:"Exchange"`
	CIK         string                 `json:"CIK"`
	Sector      string                 `json:"Sector"`
	Industry    string                 `json:"Industry"`
	GicIndustry string                 `json:"GicIndustry"`
	Description string                 `json:"Description"`
	Officers    map[string]OfficerInfo `json:"Officers"`
}

// OfficerInfo represents a company officer/executive
type OfficerInfo struct {
	Name     string `json:"Name"`
	Title    string `json:"Title"`
	YearBorn string `json:"YearBorn"`
}

// Highlights contains key financial highlights.
type Highlights struct {
	MarketCapitalization       FlexFloat `json:"MarketCapitalization"`
	ProfitMargin               FlexFloat `json:"ProfitMargin"`
	RevenueTTM                 FlexFloat `json:"RevenueTTM"`
	QuarterlyRevenueGrowthYOY  FlexFloat `json:"QuarterlyRevenueGrowthYOY"`
	QuarterlyEarningsGrowthYOY FlexFloat `json:"QuarterlyEarningsGrowthYOY"`
	MostRecentQuarter          string    `json:"MostRecentQuarter"`
}

// SharesStats contains share count information.
type SharesStats struct {
	SharesOutstanding FlexFloat `json:"SharesOutstanding"`
	SharesFloat       FlexFloat `json:"SharesFloat"`
}

// Financials contains financial statements.
type Financials struct {
	BalanceSheet    *FinancialStatement `json:"Balance_Sheet"`
	CashFlow        *FinancialStatement `json:"Cash_Flow"`
	IncomeStatement *FinancialStatement `json:"Income_Statement"`
}

// FinancialStatement represents a financial statement with quarterly and yearly data.
// Periods are keyed by date ("2024-09-30"); line items are strings, numbers or null.
type FinancialStatement struct {
	Currency  string                            `json:"currency"`
	Quarterly map[string]map[string]interface{} `json:"quarterly"`
	Yearly    map[string]map[string]interface{} `json:"yearly"`
}

// ExchangeDetailsResponse represents the response from /exchange-details/{code}.
type ExchangeDetailsResponse struct {
	Code         string                     `json:"Code"`
	Name         string                     `json:"Name"`
	Timezone     string                     `json:"Timezone"`
	TradingHours TradingHours               `json:"TradingHours"`
	Holidays     map[string]ExchangeHoliday `json:"ExchangeHolidays"`
}

// TradingHours is the regular session of an exchange
type TradingHours struct {
	Open        string `json:"Open"`  // HH:MM:SS local
	Close       string `json:"Close"` // HH:MM:SS local
	WorkingDays string `json:"WorkingDays"`
}

// ExchangeHoliday is one entry of ExchangeHolidays
type ExchangeHoliday struct {
	Holiday string `json:"Holiday"`
	Date    string `json:"Date"`
	Type    string `json:"Type"`
}

// UnmarshalJSON tolerates ExchangeHolidays sent as an empty array.
func (r *ExchangeDetailsResponse) UnmarshalJSON(data []byte) error {
	type alias ExchangeDetailsResponse
	var raw struct {
		alias
		Holidays json.RawMessage `json:"ExchangeHolidays"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ExchangeDetailsResponse(raw.alias)
	r.Holidays = nil
	if len(raw.Holidays) > 0 && raw.Holidays[0] == '{' {
		var holidays map[string]ExchangeHoliday
		if err := json.Unmarshal(raw.Holidays, &holidays); err == nil {
			r.Holidays = holidays
		}
	}
	return nil
}

package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func TestDeriveOpportunity(t *testing.T) {
	tests := []struct {
		name string
		txns []models.InsiderTransaction
		want scorecard.Opportunity
		ok   bool
	}{
		{"empty", nil, "", false},
		{"grants only", []models.InsiderTransaction{{TransactionCode: "A"}}, "", false},
		{"latest purchase", []models.InsiderTransaction{{TransactionCode: "M"}, {TransactionCode: "P"}, {TransactionCode: "S"}}, scorecard.OpportunityBuy, true},
		{"latest sale", []models.InsiderTransaction{{TransactionCode: "S"}, {TransactionCode: "P"}}, scorecard.OpportunitySell, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DeriveOpportunity(tt.txns)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFundamentalsInputConvertsFractions(t *testing.T) {
	assert.Nil(t, FundamentalsInput(nil))

	in := FundamentalsInput(&models.CompanyFundamentals{
		RevenueGrowthYoY: scorecard.Float(0.253),
		EPSGrowthYoY:     scorecard.Float(-0.1),
		TotalDebt:        scorecard.Float(50),
		TotalEquity:      scorecard.Float(100),
		FreeCashFlow:     scorecard.Float(12),
	})
	require.NotNil(t, in)
	assert.InDelta(t, 25.3, *in.RevenueGrowthYoY, 0.001)
	assert.InDelta(t, -10, *in.EPSGrowthYoY, 0.001)
	assert.InDelta(t, 0.5, *in.DebtToEquity, 0.001)
	assert.Equal(t, 12.0, *in.FreeCashFlow)
}

func TestTechnicalsInputUsesLatestOscillators(t *testing.T) {
	assert.Nil(t, TechnicalsInput(nil, nil, nil))

	prices := make([]scorecard.Candle, 25)
	for i := range prices {
		prices[i] = scorecard.Candle{Date: daysAgo(25 - i), Close: 100 + float64(i), Volume: 1000}
	}
	rsi := []models.IndicatorPoint{{Value: 40}, {Value: 45}, {Value: 55}}
	macd := []models.MACDPoint{{MACD: 0.1, Signal: 0.2}, {MACD: 0.5, Signal: 0.3, Histogram: 0.2}}

	in := TechnicalsInput(prices, rsi, macd)
	require.NotNil(t, in)
	assert.Equal(t, 124.0, *in.CurrentPrice)
	assert.Equal(t, 55.0, *in.RSI)
	assert.Equal(t, 0.5, *in.MACDLine)
	assert.Equal(t, 0.3, *in.MACDSignal)
	assert.Equal(t, 0.2, *in.MACDHistogram)
}

func TestInsiderInput(t *testing.T) {
	txns := []models.InsiderTransaction{
		{TransactionCode: "P", TransactionDate: daysAgo(2), Value: 300000, Price: 10, InsiderTitle: "Chief Executive Officer"},
		{TransactionCode: "S", TransactionDate: daysAgo(5), Value: 100000, InsiderTitle: "VP Sales"},
		{TransactionCode: "P", TransactionDate: daysAgo(9), Value: 100000, InsiderTitle: "Director"},
		{TransactionCode: "P", TransactionDate: daysAgo(45), Value: 900000, InsiderTitle: "CFO"},
	}

	in := InsiderInput(txns, scorecard.OpportunityBuy, 1000000, 10, now)
	require.NotNil(t, in)
	assert.Equal(t, 60.0, *in.NetBuyRatio30d)
	assert.Equal(t, 2, *in.DaysSinceLastTransaction)
	assert.InDelta(t, 3.0, *in.TransactionSizeVsFloat, 0.0001)
	assert.ElementsMatch(t, []scorecard.Role{scorecard.RoleCEO, scorecard.RoleDirector}, in.Roles)

	sell := InsiderInput(txns, scorecard.OpportunitySell, 1000000, 10, now)
	require.NotNil(t, sell)
	assert.Equal(t, []scorecard.Role{scorecard.RoleVP}, sell.Roles)
	assert.InDelta(t, 1.0, *sell.TransactionSizeVsFloat, 0.0001)
}

func TestInsiderInputEmptyWindow(t *testing.T) {
	txns := []models.InsiderTransaction{{TransactionCode: "P", TransactionDate: daysAgo(60), Value: 10}}
	assert.Nil(t, InsiderInput(txns, scorecard.OpportunityBuy, 0, 0, now))
}

func TestInsiderInputFallsBackToShares(t *testing.T) {
	txns := []models.InsiderTransaction{
		{TransactionCode: "P", TransactionDate: daysAgo(1), Shares: 100},
		{TransactionCode: "S", TransactionDate: daysAgo(3), Shares: 300},
	}
	in := InsiderInput(txns, scorecard.OpportunityBuy, 0, 0, now)
	require.NotNil(t, in)
	assert.Equal(t, -50.0, *in.NetBuyRatio30d)
	assert.Nil(t, in.TransactionSizeVsFloat)
}

func TestInsiderPrice(t *testing.T) {
	txns := []models.InsiderTransaction{
		{TransactionCode: "S", Price: 12},
		{TransactionCode: "P", Price: 0},
		{TransactionCode: "P", Price: 9.5},
	}
	assert.Equal(t, 9.5, InsiderPrice(txns, scorecard.OpportunityBuy))
	assert.Equal(t, 12.0, InsiderPrice(txns, scorecard.OpportunitySell))
	assert.Equal(t, 0.0, InsiderPrice(nil, scorecard.OpportunityBuy))
}

func TestNewsInput(t *testing.T) {
	articles := []models.NewsArticle{
		{Date: daysAgo(1), Title: "Shares rally", Sentiment: scorecard.Float(0.8)},
		{Date: daysAgo(2), Title: "Analyst upgrade", Sentiment: scorecard.Float(0.6)},
		{Date: daysAgo(5), Title: "Quiet quarter", Sentiment: scorecard.Float(0.1)},
		{Date: daysAgo(6), Title: "No score"},
		{Date: daysAgo(20), Title: "Old news", Sentiment: scorecard.Float(-1)},
	}

	in := NewsInput(articles, now)
	require.NotNil(t, in)
	assert.Equal(t, 4, *in.NewsCount7d)
	assert.Equal(t, 0.5, *in.AvgSentiment)
	assert.Equal(t, scorecard.TrendStrongPositive, in.SentimentTrend)
	assert.Equal(t, scorecard.CatalystPositive, in.UpcomingCatalyst)

	assert.Nil(t, NewsInput(nil, now))
}

func TestCatalystCondition(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		want   scorecard.Condition
	}{
		{"none", []string{"Company holds steady"}, scorecard.CatalystNone},
		{"positive", []string{"FDA approval granted"}, scorecard.CatalystPositive},
		{"negative", []string{"Regulator opens investigation"}, scorecard.CatalystNegative},
		{"mixed", []string{"Analyst upgrade", "Class action lawsuit filed"}, scorecard.CatalystUncertain},
		{"pending", []string{"Earnings next week"}, scorecard.CatalystNeutral},
		{"pending uncertain", []string{"Earnings release delay expected"}, scorecard.CatalystUncertain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var articles []models.NewsArticle
			for _, title := range tt.titles {
				articles = append(articles, models.NewsArticle{Date: daysAgo(1), Title: title})
			}
			assert.Equal(t, tt.want, CatalystCondition(articles, now))
		})
	}
}

func TestCatalystConditionIgnoresOldArticles(t *testing.T) {
	articles := []models.NewsArticle{{Date: daysAgo(30), Title: "Bankruptcy filing"}}
	assert.Equal(t, scorecard.CatalystNone, CatalystCondition(articles, now))
}

func TestPriceNewsCorrelation(t *testing.T) {
	prices := []scorecard.Candle{
		{Date: daysAgo(4), Close: 100},
		{Date: daysAgo(3), Close: 102},
		{Date: daysAgo(2), Close: 101},
		{Date: daysAgo(1), Close: 103},
	}
	articles := []models.NewsArticle{
		{Date: daysAgo(3), Sentiment: scorecard.Float(0.5)},
		{Date: daysAgo(2), Sentiment: scorecard.Float(-0.4)},
		{Date: daysAgo(1), Sentiment: scorecard.Float(-0.2)},
		{Date: daysAgo(10), Sentiment: scorecard.Float(0.9)},
	}

	got := PriceNewsCorrelation(prices, articles)
	require.NotNil(t, got)
	assert.Equal(t, 0.67, *got)

	assert.Nil(t, PriceNewsCorrelation(prices, nil))
}

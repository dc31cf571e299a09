package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

type fakeMarket struct {
	prices       []scorecard.Candle
	pricesErr    error
	fundamentals *models.CompanyFundamentals
	newsErr      error
	insider      []models.InsiderTransaction
	newsFrom     time.Time
	insiderFrom  time.Time
}

func (f *fakeMarket) GetCompanyFundamentals(ctx context.Context, ticker string) (*models.CompanyFundamentals, error) {
	if f.fundamentals == nil {
		return nil, errors.New("fundamentals unavailable")
	}
	return f.fundamentals, nil
}

func (f *fakeMarket) GetDailyPrices(ctx context.Context, symbol string, sessions int) ([]scorecard.Candle, error) {
	return f.prices, f.pricesErr
}

func (f *fakeMarket) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	return nil, errors.New("not used")
}

func (f *fakeMarket) GetRSI(ctx context.Context, ticker string, period int) ([]models.IndicatorPoint, error) {
	return []models.IndicatorPoint{{Value: 50}, {Value: 58}}, nil
}

func (f *fakeMarket) GetMACD(ctx context.Context, ticker string) ([]models.MACDPoint, error) {
	return []models.MACDPoint{{MACD: 1, Signal: 0.5, Histogram: 0.5}}, nil
}

func (f *fakeMarket) GetNews(ctx context.Context, ticker string, from, to time.Time) ([]models.NewsArticle, error) {
	f.newsFrom = from
	if f.newsErr != nil {
		return nil, f.newsErr
	}
	return []models.NewsArticle{{Date: daysAgo(1), Title: "Contract win", Sentiment: scorecard.Float(0.4)}}, nil
}

func (f *fakeMarket) GetInsiderTransactions(ctx context.Context, ticker string, from time.Time) ([]models.InsiderTransaction, error) {
	f.insiderFrom = from
	return f.insider, nil
}

type fakeFilings struct {
	cik string
}

func (f *fakeFilings) GetLatestFiling(ctx context.Context, ticker, cik string) (*models.FilingSummary, error) {
	f.cik = cik
	return &models.FilingSummary{FormType: "10-Q", Excerpt: "Revenue increased"}, nil
}

func candles(n int) []scorecard.Candle {
	out := make([]scorecard.Candle, n)
	for i := range out {
		// newest first to exercise sorting
		out[i] = scorecard.Candle{Date: daysAgo(i + 1), Close: 150 - float64(i), Volume: 1000}
	}
	return out
}

func newTestService(market *fakeMarket, filings *fakeFilings, opts Options) *Service {
	var fp interfaces.FilingProvider
	if filings != nil {
		fp = filings
	}
	s := NewService(market, fp, opts, arbor.NewLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestCollect(t *testing.T) {
	market := &fakeMarket{
		prices:       candles(30),
		fundamentals: &models.CompanyFundamentals{Ticker: "ACME", CIK: "0000320193", SharesFloat: 1000000, RevenueGrowthYoY: scorecard.Float(0.2)},
		insider: []models.InsiderTransaction{
			{TransactionCode: "P", TransactionDate: daysAgo(3), Price: 140, Value: 150000, InsiderTitle: "CEO"},
		},
	}
	filings := &fakeFilings{}
	s := newTestService(market, filings, Options{FilingText: true})

	var mu sync.Mutex
	var steps []string
	data, err := s.Collect(context.Background(), " acme ", "", func(substep, progress string) {
		mu.Lock()
		steps = append(steps, substep)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, "ACME", data.Ticker)
	assert.Equal(t, []string{"0/3", "1/3", "2/3", "3/3"}, steps)
	assert.Equal(t, scorecard.OpportunityBuy, data.Opportunity)
	assert.Equal(t, 140.0, data.InsiderPrice)
	assert.Equal(t, 150.0, data.CurrentPrice())
	assert.Equal(t, "0000320193", filings.cik)
	require.NotNil(t, data.Filing)
	assert.Empty(t, data.Warnings)

	m := data.Measurements
	assert.Equal(t, "ACME", m.Ticker)
	require.NotNil(t, m.Fundamentals)
	assert.Equal(t, 20.0, *m.Fundamentals.RevenueGrowthYoY)
	require.NotNil(t, m.Technicals)
	assert.Equal(t, 58.0, *m.Technicals.RSI)
	require.NotNil(t, m.Insider)
	assert.Equal(t, 100.0, *m.Insider.NetBuyRatio30d)
	require.NotNil(t, m.News)
	assert.Equal(t, scorecard.CatalystPositive, m.News.UpcomingCatalyst)

	assert.Equal(t, now.AddDate(0, 0, -CatalystWindowDays), market.newsFrom)
	assert.Equal(t, now.AddDate(0, 0, -InsiderWindowDays), market.insiderFrom)
}

func TestCollectPricesRequired(t *testing.T) {
	s := newTestService(&fakeMarket{pricesErr: errors.New("upstream 500")}, nil, Options{})
	_, err := s.Collect(context.Background(), "ACME", scorecard.OpportunityBuy, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily prices")

	s = newTestService(&fakeMarket{}, nil, Options{})
	_, err = s.Collect(context.Background(), "ACME", scorecard.OpportunityBuy, nil)
	require.Error(t, err)
}

func TestCollectOptionalFailuresBecomeWarnings(t *testing.T) {
	market := &fakeMarket{prices: candles(10), newsErr: errors.New("timeout")}
	s := newTestService(market, nil, Options{FilingText: true})

	data, err := s.Collect(context.Background(), "ACME", scorecard.OpportunitySell, nil)
	require.NoError(t, err)

	assert.Equal(t, scorecard.OpportunitySell, data.Opportunity)
	assert.Nil(t, data.Fundamentals)
	assert.Nil(t, data.Measurements.Fundamentals)
	assert.Nil(t, data.Measurements.News)
	assert.Nil(t, data.Measurements.Insider)
	assert.Nil(t, data.Filing)
	assert.Len(t, data.Warnings, 2)
}

func TestCollectDefaultsToBuyWithoutInsiderActivity(t *testing.T) {
	s := newTestService(&fakeMarket{prices: candles(5)}, nil, Options{})
	data, err := s.Collect(context.Background(), "ACME", "", nil)
	require.NoError(t, err)
	assert.Equal(t, scorecard.OpportunityBuy, data.Opportunity)
	assert.Contains(t, data.Warnings, "opportunity: no insider transaction, defaulted to BUY")
}

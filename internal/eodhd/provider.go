package eodhd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/insiderlens/internal/common"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

// Provider adapts the EODHD client to the pipeline's market data interfaces.
type Provider struct {
	client *Client
	now    func() time.Time
}

var _ interfaces.MarketDataProvider = (*Provider)(nil)

// NewProvider wraps a client as a MarketDataProvider
func NewProvider(client *Client) *Provider {
	return &Provider{client: client, now: time.Now}
}

// symbol converts a ticker ("AAPL", "NASDAQ:AAPL", "VIX.INDX") to the EODHD CODE.SUFFIX form
func symbol(ticker string) string {
	return common.ParseEODHDTicker(ticker).EODHDSymbol()
}

func (p *Provider) GetCompanyFundamentals(ctx context.Context, ticker string) (*models.CompanyFundamentals, error) {
	resp, err := p.client.GetFundamentals(ctx, symbol(ticker))
	if err != nil {
		return nil, fmt.Errorf("fundamentals %s: %w", ticker, err)
	}
	return resp.ToCompanyFundamentals(ticker), nil
}

// GetDailyPrices returns at most sessions candles, oldest first.
// Calendar lookback is padded for weekends and holidays.
func (p *Provider) GetDailyPrices(ctx context.Context, sym string, sessions int) ([]scorecard.Candle, error) {
	if sessions <= 0 {
		sessions = 60
	}
	now := p.now()
	from := now.AddDate(0, 0, -(sessions*7/5 + 10))

	eod, err := p.client.GetEOD(ctx, symbol(sym), WithDateRange(from, now), WithOrder("a"))
	if err != nil {
		return nil, fmt.Errorf("prices %s: %w", sym, err)
	}

	candles := make([]scorecard.Candle, 0, len(eod))
	for _, d := range eod {
		if d.Date.IsZero() || d.Close <= 0 {
			continue
		}
		candles = append(candles, scorecard.Candle{
			Date:   d.Date,
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: float64(d.Volume),
		})
	}
	if len(candles) > sessions {
		candles = candles[len(candles)-sessions:]
	}
	return candles, nil
}

func (p *Provider) GetQuote(ctx context.Context, sym string) (*models.Quote, error) {
	q, err := p.client.GetRealTimeQuote(ctx, symbol(sym))
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", sym, err)
	}
	if !q.Close.Valid {
		return nil, fmt.Errorf("quote %s: no price in response", sym)
	}
	quote := &models.Quote{
		Symbol:        q.Code,
		Price:         q.Close.Value,
		PreviousClose: q.PreviousClose.Value,
		Change:        q.Change.Value,
		ChangePercent: q.ChangePercent.Value,
	}
	if q.Timestamp > 0 {
		quote.Timestamp = time.Unix(q.Timestamp, 0).UTC()
	}
	return quote, nil
}

func (p *Provider) GetRSI(ctx context.Context, ticker string, period int) ([]models.IndicatorPoint, error) {
	now := p.now()
	rsi, err := p.client.GetRSI(ctx, symbol(ticker), period, WithDateRange(now.AddDate(0, 0, -60), now))
	if err != nil {
		return nil, fmt.Errorf("rsi %s: %w", ticker, err)
	}
	points := make([]models.IndicatorPoint, 0, len(rsi))
	for _, r := range rsi {
		if r.RSI.Valid && !r.Date.IsZero() {
			points = append(points, models.IndicatorPoint{Date: r.Date, Value: r.RSI.Value})
		}
	}
	return points, nil
}

func (p *Provider) GetMACD(ctx context.Context, ticker string) ([]models.MACDPoint, error) {
	now := p.now()
	macd, err := p.client.GetMACD(ctx, symbol(ticker), WithDateRange(now.AddDate(0, 0, -60), now))
	if err != nil {
		return nil, fmt.Errorf("macd %s: %w", ticker, err)
	}
	points := make([]models.MACDPoint, 0, len(macd))
	for _, m := range macd {
		if !m.MACD.Valid || !m.Signal.Valid || m.Date.IsZero() {
			continue
		}
		hist := m.Divergence.Value
		if !m.Divergence.Valid {
			hist = m.MACD.Value - m.Signal.Value
		}
		points = append(points, models.MACDPoint{Date: m.Date, MACD: m.MACD.Value, Signal: m.Signal.Value, Histogram: hist})
	}
	return points, nil
}

func (p *Provider) GetNews(ctx context.Context, ticker string, from, to time.Time) ([]models.NewsArticle, error) {
	news, err := p.client.GetNews(ctx, []string{symbol(ticker)}, WithDateRange(from, to), WithLimit(100))
	if err != nil {
		return nil, fmt.Errorf("news %s: %w", ticker, err)
	}
	articles := make([]models.NewsArticle, 0, len(news))
	for _, n := range news {
		a := models.NewsArticle{Date: n.Date, Title: n.Title, Link: n.Link, Tags: n.Tags}
		if n.Sentiment != nil {
			polarity := n.Sentiment.Polarity
			a.Sentiment = &polarity
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// GetInsiderTransactions returns open-market purchases and sales, newest first
func (p *Provider) GetInsiderTransactions(ctx context.Context, ticker string, from time.Time) ([]models.InsiderTransaction, error) {
	rows, err := p.client.GetInsiderTransactions(ctx, symbol(ticker), WithFrom(from))
	if err != nil {
		return nil, fmt.Errorf("insider %s: %w", ticker, err)
	}

	out := make([]models.InsiderTransaction, 0, len(rows))
	for _, r := range rows {
		code := strings.ToUpper(strings.TrimSpace(r.TransactionCode))
		if code != "P" && code != "S" {
			continue
		}
		if r.TransactionDate.IsZero() || r.TransactionDate.Before(from) {
			continue
		}
		title := r.OwnerTitle
		if title == "" {
			title = r.OwnerRelationship
		}
		t := models.InsiderTransaction{
			Ticker:          models.NormalizeTicker(ticker),
			InsiderName:     r.OwnerName,
			InsiderTitle:    title,
			TransactionCode: code,
			TransactionDate: r.TransactionDate,
			Shares:          r.TransactionAmount.Value,
			Price:           r.TransactionPrice.Value,
		}
		t.Value = t.Shares * t.Price
		out = append(out, t)
	}

	sortInsiderNewestFirst(out)
	return out, nil
}

func sortInsiderNewestFirst(list []models.InsiderTransaction) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].TransactionDate.After(list[j].TransactionDate)
	})
}

// MarketSchedule builds the trading calendar for an exchange from /exchange-details,
// falling back to the static US schedule when the endpoint is unavailable.
func (p *Provider) MarketSchedule(ctx context.Context, code string) common.MarketSchedule {
	schedule := common.USMarketSchedule()

	details, err := p.client.GetExchangeDetails(ctx, code)
	if err != nil {
		if p.client.logger != nil {
			p.client.logger.Warn().Err(err).Str("exchange", code).Msg("Using default market schedule")
		}
		return schedule
	}

	if details.Timezone != "" {
		schedule.Timezone = details.Timezone
	}
	if closeAt := details.TradingHours.Close; len(closeAt) >= 5 {
		schedule.CloseTime = closeAt[:5]
	}
	for _, h := range details.Holidays {
		if strings.EqualFold(h.Type, "official") || h.Type == "" {
			if d, err := time.Parse("2006-01-02", h.Date); err == nil {
				schedule.Holidays = append(schedule.Holidays, d)
			}
		}
	}
	return schedule
}

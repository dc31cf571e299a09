// Package collector gathers market data for a ticker and derives the scorecard measurements
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
	"golang.org/x/sync/errgroup"
)

var _ interfaces.DataCollector = (*Service)(nil)

// Options tunes what is fetched
type Options struct {
	PriceSessions  int
	InsiderWindow  time.Duration
	NewsWindowDays int
	FilingText     bool
	RSIPeriod      int
}

// DefaultOptions mirrors the default pipeline configuration
func DefaultOptions() Options {
	return Options{
		PriceSessions:  60,
		InsiderWindow:  InsiderWindowDays * 24 * time.Hour,
		NewsWindowDays: CatalystWindowDays,
		RSIPeriod:      14,
	}
}

// Service implements interfaces.DataCollector
type Service struct {
	market  interfaces.MarketDataProvider
	filings interfaces.FilingProvider
	opts    Options
	logger  arbor.ILogger
	now     func() time.Time
}

// NewService creates a collector. filings may be nil.
func NewService(market interfaces.MarketDataProvider, filings interfaces.FilingProvider, opts Options, logger arbor.ILogger) *Service {
	def := DefaultOptions()
	if opts.PriceSessions <= 0 {
		opts.PriceSessions = def.PriceSessions
	}
	if opts.InsiderWindow <= 0 {
		opts.InsiderWindow = def.InsiderWindow
	}
	if opts.NewsWindowDays <= 0 {
		opts.NewsWindowDays = def.NewsWindowDays
	}
	if opts.RSIPeriod <= 0 {
		opts.RSIPeriod = def.RSIPeriod
	}
	return &Service{
		market:  market,
		filings: filings,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Collect fetches every source in parallel. Only a daily price failure is fatal;
// other failures are recorded as warnings and the data scores as missing.
func (s *Service) Collect(ctx context.Context, ticker string, opportunity scorecard.Opportunity, progress interfaces.ProgressFunc) (*models.CollectedData, error) {
	if progress == nil {
		progress = func(string, string) {}
	}
	ticker = models.NormalizeTicker(ticker)
	now := s.now()
	data := &models.CollectedData{Ticker: ticker}

	var mu sync.Mutex
	warn := func(source string, err error) {
		s.logger.Warn().Str("ticker", ticker).Str("source", source).Err(err).Msg("Optional data unavailable")
		mu.Lock()
		data.Warnings = append(data.Warnings, fmt.Sprintf("%s: %v", source, err))
		mu.Unlock()
	}

	progress("0/3", "Fetching market data")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prices, err := s.market.GetDailyPrices(gctx, ticker, s.opts.PriceSessions)
		if err != nil {
			return fmt.Errorf("daily prices: %w", err)
		}
		if len(prices) == 0 {
			return fmt.Errorf("daily prices: no sessions returned for %s", ticker)
		}
		data.Prices = scorecard.SortCandles(prices)
		return nil
	})
	g.Go(func() error {
		f, err := s.market.GetCompanyFundamentals(gctx, ticker)
		if err != nil {
			warn("fundamentals", err)
			return nil
		}
		data.Fundamentals = f
		return nil
	})
	g.Go(func() error {
		rsi, err := s.market.GetRSI(gctx, ticker, s.opts.RSIPeriod)
		if err != nil {
			warn("rsi", err)
			return nil
		}
		data.RSI = rsi
		return nil
	})
	g.Go(func() error {
		macd, err := s.market.GetMACD(gctx, ticker)
		if err != nil {
			warn("macd", err)
			return nil
		}
		data.MACD = macd
		return nil
	})
	g.Go(func() error {
		news, err := s.market.GetNews(gctx, ticker, now.AddDate(0, 0, -s.opts.NewsWindowDays), now)
		if err != nil {
			warn("news", err)
			return nil
		}
		data.News = news
		return nil
	})
	g.Go(func() error {
		txns, err := s.market.GetInsiderTransactions(gctx, ticker, now.Add(-s.opts.InsiderWindow))
		if err != nil {
			warn("insider", err)
			return nil
		}
		data.Insider = txns
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	progress("1/3", "Market data fetched")

	data.Opportunity = opportunity
	if data.Opportunity == "" {
		if derived, ok := DeriveOpportunity(data.Insider); ok {
			data.Opportunity = derived
		} else {
			data.Opportunity = scorecard.OpportunityBuy
			data.Warnings = append(data.Warnings, "opportunity: no insider transaction, defaulted to BUY")
		}
	}
	data.InsiderPrice = InsiderPrice(data.Insider, data.Opportunity)

	if s.opts.FilingText && s.filings != nil {
		cik := ""
		if data.Fundamentals != nil {
			cik = data.Fundamentals.CIK
		}
		filing, err := s.filings.GetLatestFiling(ctx, ticker, cik)
		if err != nil {
			warn("filing", err)
		} else {
			data.Filing = filing
		}
	}
	progress("2/3", "Filing text fetched")

	var sharesFloat float64
	if data.Fundamentals != nil {
		sharesFloat = data.Fundamentals.SharesFloat
	}
	data.Measurements = scorecard.Measurements{
		Ticker:       ticker,
		Fundamentals: FundamentalsInput(data.Fundamentals),
		Technicals:   TechnicalsInput(data.Prices, data.RSI, data.MACD),
		Insider:      InsiderInput(data.Insider, data.Opportunity, sharesFloat, data.CurrentPrice(), now),
		News:         NewsInput(data.News, now),
	}
	data.NewsCorrelation = PriceNewsCorrelation(data.Prices, data.News)

	progress("3/3", "Measurements derived")

	s.logger.Info().
		Str("ticker", ticker).
		Str("opportunity", string(data.Opportunity)).
		Int("sessions", len(data.Prices)).
		Int("news", len(data.News)).
		Int("insider", len(data.Insider)).
		Int("warnings", len(data.Warnings)).
		Msg("Data collected")
	return data, nil
}

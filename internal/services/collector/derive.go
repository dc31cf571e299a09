package collector

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

// Aggregation windows
const (
	InsiderWindowDays  = 30
	NewsWindowDays     = 7
	RecentNewsDays     = 3
	CatalystWindowDays = 14
)

// DeriveOpportunity maps the latest open-market insider transaction onto a
// trade direction. txns must be newest first.
func DeriveOpportunity(txns []models.InsiderTransaction) (scorecard.Opportunity, bool) {
	for _, t := range txns {
		switch {
		case t.IsPurchase():
			return scorecard.OpportunityBuy, true
		case t.IsSale():
			return scorecard.OpportunitySell, true
		}
	}
	return "", false
}

// FundamentalsInput converts vendor fractions into the percentages the rubric scores
func FundamentalsInput(f *models.CompanyFundamentals) *scorecard.FundamentalsInput {
	if f == nil {
		return nil
	}
	return &scorecard.FundamentalsInput{
		RevenueGrowthYoY:  percent(f.RevenueGrowthYoY),
		EPSGrowthYoY:      percent(f.EPSGrowthYoY),
		ProfitMarginTrend: scorecard.ProfitMarginTrend(f.ProfitMargin, f.PreviousProfitMargin),
		FreeCashFlow:      f.FreeCashFlow,
		TotalDebt:         f.TotalDebt,
		DebtToEquity:      f.DebtToEquity(),
	}
}

// TechnicalsInput combines price-derived inputs with the vendor oscillators
func TechnicalsInput(prices []scorecard.Candle, rsi []models.IndicatorPoint, macd []models.MACDPoint) *scorecard.TechnicalsInput {
	t := scorecard.ExtractTechnicals(prices)
	if t == nil {
		return nil
	}

	if len(rsi) > 0 {
		values := make([]float64, len(rsi))
		for i, p := range rsi {
			values[i] = p.Value
		}
		t.RSI = scorecard.Float(values[len(values)-1])
		t.RSIDirection = scorecard.RSIDirectionFrom(values)
	}
	if len(macd) > 0 {
		last := macd[len(macd)-1]
		t.MACDLine = scorecard.Float(last.MACD)
		t.MACDSignal = scorecard.Float(last.Signal)
		t.MACDHistogram = scorecard.Float(last.Histogram)
	}
	return t
}

// InsiderInput aggregates transactions inside the 30-day window. Roles come
// from transactions in the opportunity direction. Returns nil without any
// transaction in the window.
func InsiderInput(txns []models.InsiderTransaction, opportunity scorecard.Opportunity, sharesFloat, price float64, now time.Time) *scorecard.InsiderInput {
	cutoff := now.AddDate(0, 0, -InsiderWindowDays)

	var window []models.InsiderTransaction
	for _, t := range txns {
		if !t.TransactionDate.Before(cutoff) && (t.IsPurchase() || t.IsSale()) {
			window = append(window, t)
		}
	}
	if len(window) == 0 {
		return nil
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].TransactionDate.After(window[j].TransactionDate)
	})

	var buys, sells float64
	for _, t := range window {
		size := t.Value
		if size <= 0 {
			size = t.Shares
		}
		if t.IsPurchase() {
			buys += size
		} else {
			sells += size
		}
	}

	in := &scorecard.InsiderInput{}
	if total := buys + sells; total > 0 {
		in.NetBuyRatio30d = scorecard.Float(round2((buys - sells) / total * 100))
	}

	days := int(now.Sub(window[0].TransactionDate).Hours() / 24)
	if days < 0 {
		days = 0
	}
	in.DaysSinceLastTransaction = scorecard.Int(days)

	matching := func(t models.InsiderTransaction) bool {
		if opportunity.OrDefault() == scorecard.OpportunitySell {
			return t.IsSale()
		}
		return t.IsPurchase()
	}

	latest := window[0]
	for _, t := range window {
		if matching(t) {
			latest = t
			break
		}
	}
	if floatValue := sharesFloat * price; floatValue > 0 && latest.Value > 0 {
		in.TransactionSizeVsFloat = scorecard.Float(latest.Value / floatValue * 100)
	}

	seen := make(map[scorecard.Role]bool)
	for _, t := range window {
		if !matching(t) {
			continue
		}
		for _, r := range scorecard.NormalizeInsiderRoles(t.InsiderTitle) {
			if !seen[r] {
				seen[r] = true
				in.Roles = append(in.Roles, r)
			}
		}
	}
	return in
}

// InsiderPrice returns the price of the latest transaction in the opportunity direction
func InsiderPrice(txns []models.InsiderTransaction, opportunity scorecard.Opportunity) float64 {
	for _, t := range txns {
		if t.Price <= 0 {
			continue
		}
		if opportunity.OrDefault() == scorecard.OpportunitySell && t.IsSale() {
			return t.Price
		}
		if opportunity.OrDefault() == scorecard.OpportunityBuy && t.IsPurchase() {
			return t.Price
		}
	}
	return 0
}

// NewsInput aggregates sentiment over 7 days, the 3-day vs prior 4-day trend
// and catalysts over 14 days. Returns nil when no article falls in the window.
func NewsInput(articles []models.NewsArticle, now time.Time) *scorecard.NewsInput {
	weekAgo := now.AddDate(0, 0, -NewsWindowDays)
	recentCutoff := now.AddDate(0, 0, -RecentNewsDays)

	var all, recent, prior []float64
	count := 0
	for _, a := range articles {
		if a.Date.Before(weekAgo) || a.Date.After(now) {
			continue
		}
		count++
		if a.Sentiment == nil {
			continue
		}
		all = append(all, *a.Sentiment)
		if a.Date.Before(recentCutoff) {
			prior = append(prior, *a.Sentiment)
		} else {
			recent = append(recent, *a.Sentiment)
		}
	}

	catalyst := CatalystCondition(articles, now)
	if count == 0 && catalyst == scorecard.CatalystNone {
		return nil
	}

	in := &scorecard.NewsInput{
		NewsCount7d:      scorecard.Int(count),
		UpcomingCatalyst: catalyst,
	}
	if len(all) > 0 {
		in.AvgSentiment = scorecard.Float(round2(scorecard.Mean(all)))
	}
	if len(recent) > 0 && len(prior) > 0 {
		in.SentimentTrend = scorecard.SentimentTrend(scorecard.Mean(recent), scorecard.Mean(prior))
	}
	return in
}

var (
	positiveCatalysts = []string{"fda approval", "approval", "upgrade", "beats", "record revenue", "partnership", "contract win", "buyback", "raises guidance", "acquisition"}
	negativeCatalysts = []string{"downgrade", "lawsuit", "investigation", "recall", "misses", "guidance cut", "lowers guidance", "bankruptcy", "delisting", "sec charges"}
	pendingCatalysts  = []string{"earnings", "investor day", "conference", "product launch", "shareholder meeting", "fda decision", "trial results"}
	uncertainWords    = []string{"delay", "pending", "under review", "uncertain"}
)

// CatalystCondition scans headlines from the last 14 days for catalyst keywords
func CatalystCondition(articles []models.NewsArticle, now time.Time) scorecard.Condition {
	cutoff := now.AddDate(0, 0, -CatalystWindowDays)
	var positive, negative, pending, uncertain bool
	for _, a := range articles {
		if a.Date.Before(cutoff) {
			continue
		}
		text := strings.ToLower(a.Title + " " + strings.Join(a.Tags, " "))
		positive = positive || containsAny(text, positiveCatalysts)
		negative = negative || containsAny(text, negativeCatalysts)
		pending = pending || containsAny(text, pendingCatalysts)
		uncertain = uncertain || containsAny(text, uncertainWords)
	}
	switch {
	case (positive && negative) || (pending && uncertain):
		return scorecard.CatalystUncertain
	case negative:
		return scorecard.CatalystNegative
	case positive:
		return scorecard.CatalystPositive
	case pending:
		return scorecard.CatalystNeutral
	default:
		return scorecard.CatalystNone
	}
}

// PriceNewsCorrelation is the fraction of news days whose average sentiment
// sign matches the same-day close-to-close move. Nil without overlapping days.
func PriceNewsCorrelation(prices []scorecard.Candle, articles []models.NewsArticle) *float64 {
	sorted := scorecard.SortCandles(prices)
	moves := make(map[string]float64, len(sorted))
	for i := 1; i < len(sorted); i++ {
		moves[dayKey(sorted[i].Date)] = sorted[i].Close - sorted[i-1].Close
	}

	sentiment := make(map[string][]float64)
	for _, a := range articles {
		if a.Sentiment != nil {
			k := dayKey(a.Date)
			sentiment[k] = append(sentiment[k], *a.Sentiment)
		}
	}

	days, matches := 0, 0
	for day, values := range sentiment {
		move, ok := moves[day]
		avg := scorecard.Mean(values)
		if !ok || move == 0 || avg == 0 {
			continue
		}
		days++
		if (move > 0) == (avg > 0) {
			matches++
		}
	}
	if days == 0 {
		return nil
	}
	return scorecard.Float(round2(float64(matches) / float64(days)))
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func percent(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return scorecard.Float(round2(*v * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package evaluator

import (
	"fmt"
	"strings"

	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

const systemInstruction = "You are an expert equity analyst grading short-horizon insider-driven trade setups. " +
	"Answer with a single JSON object and nothing else."

// responseSchema constrains Gemini output to the evaluation shape
var responseSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"riskAssessment", "entryTiming", "conviction", "rationale"},
	"properties": map[string]interface{}{
		"riskAssessment": map[string]interface{}{"type": "string", "enum": conditionStrings(riskValues)},
		"entryTiming":    map[string]interface{}{"type": "string", "enum": conditionStrings(timingValues)},
		"conviction":     map[string]interface{}{"type": "string", "enum": conditionStrings(convictionValues)},
		"rationale": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"risk", "timing", "conviction"},
			"properties": map[string]interface{}{
				"risk":       map[string]interface{}{"type": "string"},
				"timing":     map[string]interface{}{"type": "string"},
				"conviction": map[string]interface{}{"type": "string"},
			},
		},
	},
}

type promptWriter struct {
	strings.Builder
}

func (w *promptWriter) line(format string, args ...interface{}) {
	fmt.Fprintf(&w.Builder, format, args...)
	w.WriteByte('\n')
}

func (w *promptWriter) float(label string, v *float64, format string) {
	if v != nil {
		w.line("- %s: "+format, label, *v)
	}
}

// BuildPrompt renders the stock context and partial scorecard as the evaluation prompt
func BuildPrompt(stock models.StockContext) string {
	opportunity := stock.OpportunityType.OrDefault()
	direction, move, lookFor := "long (buy)", "upward", "early uptrends, improving fundamentals, positive catalysts"
	if opportunity == scorecard.OpportunitySell {
		direction, move, lookFor = "short (sell)", "downward", "early downtrends, deteriorating fundamentals, negative catalysts"
	}

	w := &promptWriter{}
	name := stock.CompanyName
	if name == "" {
		name = stock.Ticker
	}
	w.line("Evaluate a %s opportunity for %s (%s), industry %s.", direction, stock.Ticker, name, stock.Industry)
	w.line("")
	w.line("## OPPORTUNITY TYPE: %s", opportunity)
	w.line("Current Price: $%.2f", stock.CurrentPrice)
	if stock.InsiderPrice > 0 {
		w.line("Insider Price: $%.2f", stock.InsiderPrice)
	}
	w.float("Price Change Since Insider Trade", stock.PriceChangePercent, "%+.1f%%")
	if stock.DaysSinceInsiderTrade != nil {
		w.line("- Days Since Insider Trade: %d", *stock.DaysSinceInsiderTrade)
	}

	m := stock.Measurements
	if t := m.Technicals; t != nil {
		w.line("")
		w.line("## PRICE TREND & TECHNICALS")
		w.float("5-day SMA", t.SMA5, "$%.2f")
		w.float("10-day SMA", t.SMA10, "$%.2f")
		w.float("20-day SMA", t.SMA20, "$%.2f")
		w.float("RSI (14-day)", t.RSI, "%.1f")
		w.float("MACD Histogram", t.MACDHistogram, "%.3f")
		w.float("Volume vs 10-day Average", t.VolumeVsAvg, "%.2fx")
	}
	if f := m.Fundamentals; f != nil {
		w.line("")
		w.line("## FUNDAMENTALS")
		w.float("Revenue Growth YoY", f.RevenueGrowthYoY, "%+.1f%%")
		w.float("EPS Growth YoY", f.EPSGrowthYoY, "%+.1f%%")
		w.float("Debt-to-Equity", f.DebtToEquity, "%.2f")
		if f.ProfitMarginTrend != "" {
			w.line("- Profit Margin Trend: %s", f.ProfitMarginTrend)
		}
	}
	if n := m.News; n != nil {
		w.line("")
		w.line("## MARKET SENTIMENT")
		w.float("News Sentiment (-1 to +1)", n.AvgSentiment, "%.2f")
		if n.NewsCount7d != nil {
			w.line("- News Volume (7d): %d articles", *n.NewsCount7d)
		}
	}
	if mc := m.Macro; mc != nil {
		w.float("Sector vs SPY (10d)", mc.SectorVsSPY10d, "%+.1f%%")
		if mc.MacroRiskEnvironment != "" {
			w.line("- Macro Environment: %s", mc.MacroRiskEnvironment)
		}
	}

	if sc := stock.Scorecard; sc != nil {
		w.line("")
		w.line("## RULE-BASED SCORES (0-100)")
		for _, s := range sc.Sections {
			w.line("- %s: %d/100", s.Label, s.Score)
		}
		w.line("- Global: %d/100 (%s confidence)", sc.GlobalScore, sc.Confidence)
	}

	w.line("")
	w.line("Grade this %s opportunity on three dimensions and respond with exactly this JSON shape:", direction)
	w.line(`{"riskAssessment": "<%s>", "entryTiming": "<%s>", "conviction": "<%s>",`,
		joinConditions(riskValues), joinConditions(timingValues), joinConditions(convictionValues))
	w.line(`"rationale": {"risk": "<1-2 sentences>", "timing": "<1-2 sentences>", "conviction": "<1-2 sentences>"}}`)
	w.line("")
	w.line("1. Risk: volatility, fundamental weakness, market conditions, sector headwinds.")
	w.line("2. Timing: use the trend (SMAs, RSI, MACD) to judge whether entry is before, mid-way through or too late for the %s move.", move)
	w.line("3. Conviction: confidence in the %s thesis given all the data.", direction)
	w.line("4. For %s opportunities look for %s.", opportunity, lookFor)
	return w.String()
}

func joinConditions(values []scorecard.Condition) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, "|")
}

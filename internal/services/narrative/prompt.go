package narrative

import (
	"fmt"
	"strings"

	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

const (
	maxHeadlines     = 5
	maxFilingExcerpt = 4000
)

// BuildPrompt renders the scored context, macro backdrop, filing excerpt and
// headlines as the narrative prompt
func BuildPrompt(r models.NarrativeRequest) string {
	c := r.Context
	opportunity := c.OpportunityType.OrDefault()
	isBuy := opportunity == scorecard.OpportunityBuy

	var b strings.Builder
	fmt.Fprintf(&b, "Assess the insider %s signal for %s (%s), industry %s.\n", strings.ToLower(string(opportunity)), c.Ticker, c.CompanyName, c.Industry)
	fmt.Fprintf(&b, "Integrated score: %d/100. Current price $%.2f", r.IntegratedScore, c.CurrentPrice)
	if c.InsiderPrice > 0 {
		fmt.Fprintf(&b, ", insider price $%.2f", c.InsiderPrice)
	}
	if c.PriceChangePercent != nil {
		fmt.Fprintf(&b, " (%+.1f%% since the insider trade)", *c.PriceChangePercent)
	}
	if c.DaysSinceInsiderTrade != nil {
		fmt.Fprintf(&b, ", trade %d days old", *c.DaysSinceInsiderTrade)
	}
	b.WriteString(".\n")

	if c.Scorecard != nil {
		b.WriteString("\n=== SCORECARD ===\n")
		b.WriteString(c.Scorecard.Summary)
		b.WriteString("\n")
		for _, s := range c.Scorecard.Sections {
			for _, m := range s.Metrics {
				fmt.Fprintf(&b, "- %s\n", m.Rationale)
			}
		}
	}

	if r.Macro != nil {
		b.WriteString("\n=== MACRO ===\n")
		fmt.Fprintf(&b, "%s: %s (score %d, factor %.2f). %s\n", r.Macro.Industry, r.Macro.Recommendation, r.Macro.MacroScore, r.Macro.MacroFactor, r.Macro.Summary)
		if snap := r.Macro.Snapshot; snap.VIXLevel > 0 {
			fmt.Fprintf(&b, "VIX %.1f (%s), SPY %+.1f%% today\n", snap.VIXLevel, snap.VIXInterpretation, snap.SPYChangePercent)
		}
	}

	if len(r.Headlines) > 0 {
		b.WriteString("\n=== NEWS ===\n")
		for i, h := range r.Headlines {
			if i == maxHeadlines {
				break
			}
			if h.Sentiment != nil {
				fmt.Fprintf(&b, "- %s (sentiment %.2f)\n", h.Title, *h.Sentiment)
			} else {
				fmt.Fprintf(&b, "- %s\n", h.Title)
			}
		}
	}
	if r.NewsCorrelation != nil {
		fmt.Fprintf(&b, "News sentiment agreed with the same-day price move on %.0f%% of news days.\n", *r.NewsCorrelation*100)
	}

	if r.Filing != nil && r.Filing.Excerpt != "" {
		excerpt := r.Filing.Excerpt
		if len(excerpt) > maxFilingExcerpt {
			excerpt = excerpt[:maxFilingExcerpt]
		}
		fmt.Fprintf(&b, "\n=== %s FILED %s ===\n%s\n", r.Filing.FormType, r.Filing.FilingDate.Format("2006-01-02"), excerpt)
	}

	if r.RubricPrompt != "" {
		b.WriteString("\n=== SCORING RUBRIC ===\n")
		b.WriteString(r.RubricPrompt)
		b.WriteString("\n")
	}

	action := "BUY NOW / WATCH / AVOID"
	rating := "buy"
	if !isBuy {
		action, rating = "SHORT NOW / WATCH / AVOID", "sell"
	}
	b.WriteString("\nReturn ONLY this JSON:\n")
	fmt.Fprintf(&b, `{"overallRating": "%s|hold|avoid", "confidenceScore": 0-100, "summary": "2-3 sentences",`+"\n", rating)
	b.WriteString(`"financialHealth": {"score": 0-100, "strengths": [], "weaknesses": [], "redFlags": []},` + "\n")
	b.WriteString(`"technicalAnalysis": {"score": 0-100, "trend": "bullish|bearish|neutral"},` + "\n")
	b.WriteString(`"sentimentAnalysis": {"score": 0-100, "trend": "positive|negative|neutral"},` + "\n")
	fmt.Fprintf(&b, `"risks": [], "opportunities": [], "recommendation": "%s - 2-sentence action"}`+"\n", action)
	return b.String()
}

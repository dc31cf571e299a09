package scorecard

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExplainDifference(t *testing.T) {
	m := Measurements{Fundamentals: &FundamentalsInput{RevenueGrowthYoY: Float(30)}}
	buy := Generate(m, OpportunityBuy)
	sell := Generate(m, OpportunitySell)

	got := ExplainDifference(buy, sell)
	lines := strings.Split(got, "\n")

	assert.Equal(t, "Overall: 35 vs 0 (diff: +35)", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "Fundamentals: 100 vs 0 (+100)", lines[2])
	assert.Equal(t, "  - YoY Revenue Growth: 10 vs 0 (+10)", lines[3])
	assert.Equal(t, "    A: YoY Revenue Growth: 30 → Excellent (10/10)", lines[4])
	assert.Equal(t, "    B: YoY Revenue Growth: 30 → Poor (0/10)", lines[5])
	assert.Len(t, lines, 6)

	reverse := ExplainDifference(sell, buy)
	assert.True(t, strings.HasPrefix(reverse, "Overall: 0 vs 35 (diff: -35)"))
}

func TestExplainDifference_Identical(t *testing.T) {
	card := Generate(fullMeasurements(), OpportunityBuy)
	score := strconv.Itoa(card.GlobalScore)
	assert.Equal(t, "Overall: "+score+" vs "+score+" (diff: +0)\n", ExplainDifference(card, card))
}

func TestRubricPrompt(t *testing.T) {
	prompt := RubricPrompt(DefaultRubric())

	assert.Contains(t, prompt, "## SCORING RUBRIC (Version 1.0)")
	assert.Contains(t, prompt, "Trading Horizon: 1-2 weeks")
	assert.Contains(t, prompt, "### Fundamentals (Weight: 35%)")
	assert.Contains(t, prompt, "**revenueGrowth** - YoY Revenue Growth (Weight: 25%, bullish)")
	assert.Contains(t, prompt, "  - EXCELLENT (10 pts): >= 25")
	assert.Contains(t, prompt, "  - GOOD (8 pts): >= 10 AND < 25")
	assert.Contains(t, prompt, "  - EXCELLENT (10 pts): >= 2 AND 2x+_with_price_confirmation")
}

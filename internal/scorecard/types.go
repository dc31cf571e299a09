// Package scorecard provides the rule-based scoring engine that converts a
// bundle of raw measurements into an explainable 0-100 scorecard.
// All functions are pure and perform no I/O.
package scorecard

import (
	"fmt"
	"regexp"
	"strings"
)

// Bucket is a qualitative tier a metric is assigned to
type Bucket string

const (
	BucketExcellent Bucket = "excellent"
	BucketGood      Bucket = "good"
	BucketNeutral   Bucket = "neutral"
	BucketWeak      Bucket = "weak"
	BucketPoor      Bucket = "poor"
	BucketMissing   Bucket = "missing"
)

// RankedBuckets lists the scoring buckets from best to worst. Lookup order follows it.
var RankedBuckets = []Bucket{BucketExcellent, BucketGood, BucketNeutral, BucketWeak, BucketPoor}

// Points returns the 0-10 score for the bucket. Missing scores 0.
func (b Bucket) Points() int {
	switch b {
	case BucketExcellent:
		return 10
	case BucketGood:
		return 8
	case BucketNeutral:
		return 5
	case BucketWeak:
		return 2
	default:
		return 0
	}
}

// Title returns the capitalised display name used in rationales
func (b Bucket) Title() string {
	if b == "" {
		return ""
	}
	return strings.ToUpper(string(b[:1])) + string(b[1:])
}

// Valid reports whether b is one of the five scoring buckets
func (b Bucket) Valid() bool {
	for _, r := range RankedBuckets {
		if b == r {
			return true
		}
	}
	return false
}

// Polarity is the direction in which a metric favours a thesis
type Polarity string

const (
	PolarityBullish   Polarity = "bullish"
	PolarityBearish   Polarity = "bearish"
	PolaritySymmetric Polarity = "symmetric"
)

// Valid reports whether p is a known polarity
func (p Polarity) Valid() bool {
	return p == PolarityBullish || p == PolarityBearish || p == PolaritySymmetric
}

// Opportunity is the trade direction the scorecard is computed for
type Opportunity string

const (
	OpportunityBuy  Opportunity = "BUY"
	OpportunitySell Opportunity = "SELL"
)

// ParseOpportunity converts s into an Opportunity
func ParseOpportunity(s string) (Opportunity, error) {
	switch Opportunity(strings.ToUpper(strings.TrimSpace(s))) {
	case OpportunityBuy:
		return OpportunityBuy, nil
	case OpportunitySell:
		return OpportunitySell, nil
	default:
		return "", fmt.Errorf("unknown opportunity type %q", s)
	}
}

// OrDefault returns BUY when the opportunity is unset
func (o Opportunity) OrDefault() Opportunity {
	if o == OpportunitySell {
		return OpportunitySell
	}
	return OpportunityBuy
}

// Confidence summarises how much of the card was computed from real data
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Condition is a normalised categorical measurement (lower case, underscores for whitespace)
type Condition string

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeCondition lower-cases s and replaces whitespace runs with underscores
func NormalizeCondition(s string) Condition {
	return Condition(whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_"))
}

// Fundamentals conditions
const (
	MarginStrongGrowth  Condition = "strong_growth"
	MarginImproving     Condition = "improving"
	MarginStable        Condition = "stable"
	MarginDeclining     Condition = "declining"
	MarginDecliningFast Condition = "declining_fast"
)

// Technicals conditions
const (
	SMABullishAligned Condition = "5>10>20_bullish"
	SMAMixedBullish   Condition = "mixed_bullish"
	SMANeutral        Condition = "neutral_crossover"
	SMAMixedBearish   Condition = "mixed_bearish"
	SMABearishAligned Condition = "5<10<20_bearish"

	RSISweetSpot          Condition = "40-60_rising"
	RSIFavorable          Condition = "30-70_favorable"
	RSIFlat               Condition = "45-55_flat"
	RSIApproachingExtreme Condition = "approaching_extremes"
	RSIExtreme            Condition = "overbought_80+_or_oversold_20-"

	MACDStrongBullish Condition = "strong_bullish_crossover"
	MACDBullish       Condition = "bullish_momentum"
	MACDFlat          Condition = "flat_no_signal"
	MACDBearish       Condition = "bearish_momentum"
	MACDStrongBearish Condition = "strong_bearish_crossover"

	VolumeConfirmedSurge Condition = "2x+_with_price_confirmation"

	LevelBreakout    Condition = "breakout_above_resistance"
	LevelNearSupport Condition = "near_support_bouncing"
	LevelMidRange    Condition = "mid_range"
	LevelNearResist  Condition = "near_resistance_rejected"
	LevelBreakdown   Condition = "breakdown_below_support"
)

// Insider conditions
const (
	InsiderCSuite     Condition = "c_suite_buying"
	InsiderVPDirector Condition = "vp_or_director_buying"
	InsiderMixed      Condition = "mixed_roles"
	InsiderHolders    Condition = "only_10%_holders"
	InsiderNone       Condition = "no_meaningful_insider_activity"
)

// News conditions
const (
	TrendStrongPositive Condition = "strong_positive_shift"
	TrendImproving      Condition = "improving"
	TrendStable         Condition = "stable"
	TrendWorsening      Condition = "worsening"
	TrendSharpNegative  Condition = "sharp_negative_shift"

	CatalystPositive  Condition = "positive_catalyst_within_2_weeks"
	CatalystNeutral   Condition = "neutral_catalyst_upcoming"
	CatalystNone      Condition = "no_catalyst_expected"
	CatalystUncertain Condition = "uncertainty_around_catalyst"
	CatalystNegative  Condition = "negative_catalyst_expected"
)

// Macro conditions
const (
	MacroTailwinds Condition = "favorable_tailwinds"
	MacroLowRisk   Condition = "low_risk"
	MacroNeutral   Condition = "neutral"
	MacroHeadwinds Condition = "some_headwinds"
	MacroSevere    Condition = "severe_macro_risks"
)

// AI evaluation conditions
const (
	RiskMinimal    Condition = "minimal_risk"
	RiskManageable Condition = "manageable_risk"
	RiskModerate   Condition = "moderate_risk"
	RiskElevated   Condition = "elevated_risk"
	RiskHigh       Condition = "high_risk"

	TimingEarly   Condition = "early_before_profit"
	TimingOptimal Condition = "optimal_entry_window"
	TimingMidway  Condition = "mid_way_through_move"
	TimingLate    Condition = "late_entry"
	TimingMissed  Condition = "missed_opportunity"

	ConvictionVeryHigh Condition = "very_high_conviction"
	ConvictionHigh     Condition = "high_conviction"
	ConvictionModerate Condition = "moderate_conviction"
	ConvictionLow      Condition = "low_conviction"
	ConvictionNone     Condition = "no_conviction"
)

package evaluator

import (
	"strings"

	"github.com/ternarybob/insiderlens/internal/scorecard"
)

var (
	riskValues = []scorecard.Condition{
		scorecard.RiskMinimal, scorecard.RiskManageable, scorecard.RiskModerate, scorecard.RiskElevated, scorecard.RiskHigh,
	}
	timingValues = []scorecard.Condition{
		scorecard.TimingEarly, scorecard.TimingOptimal, scorecard.TimingMidway, scorecard.TimingLate, scorecard.TimingMissed,
	}
	convictionValues = []scorecard.Condition{
		scorecard.ConvictionVeryHigh, scorecard.ConvictionHigh, scorecard.ConvictionModerate, scorecard.ConvictionLow, scorecard.ConvictionNone,
	}
)

// Phrases the model, or an upstream wrapper, emits instead of real analysis
var stubPatterns = []string{
	"unable to",
	"no risk rationale",
	"no timing rationale",
	"no conviction rationale",
	"could not be assessed",
	"ai service error",
	"parse error",
	"limited data",
}

const minRationaleChars = 10

// FallbackReason returns why the evaluation is a stub, or "" when it is usable.
// A default moderate/mid-way/moderate triple counts as a fallback on its own.
func FallbackReason(e *scorecard.AIEvaluation) string {
	if e == nil {
		return "evaluation missing"
	}

	if !oneOf(e.RiskAssessment, riskValues) || !oneOf(e.EntryTiming, timingValues) || !oneOf(e.Conviction, convictionValues) {
		return "value outside the allowed domain"
	}

	if e.RiskAssessment == scorecard.RiskModerate &&
		e.EntryTiming == scorecard.TimingMidway &&
		e.Conviction == scorecard.ConvictionModerate {
		return "default categorical triple"
	}

	rationales := []string{e.Rationale.Risk, e.Rationale.Timing, e.Rationale.Conviction}
	for _, r := range rationales {
		lower := strings.ToLower(r)
		for _, p := range stubPatterns {
			if strings.Contains(lower, p) {
				return "stub rationale: " + p
			}
		}
	}
	for _, r := range rationales {
		if len(strings.TrimSpace(r)) < minRationaleChars {
			return "rationale too short"
		}
	}
	return ""
}

// IsFallback reports whether the evaluation should be rejected and retried
func IsFallback(e *scorecard.AIEvaluation) bool {
	return FallbackReason(e) != ""
}

func oneOf(c scorecard.Condition, values []scorecard.Condition) bool {
	for _, v := range values {
		if c == v {
			return true
		}
	}
	return false
}

func conditionStrings(values []scorecard.Condition) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	args := m.Called(ctx, request)
	if resp := args.Get(0); resp != nil {
		return resp.(*interfaces.ContentResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGenerator) Close() error { return nil }

const goodAnswer = "```json\n" + `{"riskAssessment":"manageable_risk","entryTiming":"optimal_entry_window","conviction":"high_conviction",
"rationale":{"risk":"Leverage is modest and margins are expanding.","timing":"Price just reclaimed the 20-day SMA with rising RSI.","conviction":"CEO bought in size after a strong quarter."}}` + "\n```"

func stockContext() models.StockContext {
	return models.StockContext{
		Ticker:          "ACME",
		CompanyName:     "Acme Corp",
		Industry:        "Software",
		OpportunityType: scorecard.OpportunityBuy,
		CurrentPrice:    42.5,
		InsiderPrice:    40,
		Measurements: scorecard.Measurements{
			Ticker:     "ACME",
			Technicals: &scorecard.TechnicalsInput{RSI: scorecard.Float(55), SMA20: scorecard.Float(41)},
		},
	}
}

func TestEvaluateAcceptsRealAnswer(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r *interfaces.ContentRequest) bool {
		return r.OutputSchema != nil && len(r.Messages) == 1
	})).Return(&interfaces.ContentResponse{Text: goodAnswer, Provider: "gemini"}, nil)

	svc := NewService(gen, "", arbor.NewLogger())
	eval, err := svc.Evaluate(context.Background(), stockContext())
	require.NoError(t, err)
	assert.Equal(t, scorecard.RiskManageable, eval.RiskAssessment)
	assert.Equal(t, scorecard.TimingOptimal, eval.EntryTiming)
	assert.Equal(t, scorecard.ConvictionHigh, eval.Conviction)
	gen.AssertExpectations(t)
}

func TestEvaluateRejectsFallbackAndErrors(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
	}{
		{"provider error", "", errors.New("503 unavailable")},
		{"no json", "I cannot help with that", nil},
		{"default triple", `{"riskAssessment":"moderate_risk","entryTiming":"mid_way_through_move","conviction":"moderate_conviction","rationale":{"risk":"Balanced risk profile overall.","timing":"Trend is partially extended.","conviction":"Mixed signals across sections."}}`, nil},
		{"stub rationale", `{"riskAssessment":"high_risk","entryTiming":"late_entry","conviction":"low_conviction","rationale":{"risk":"Unable to determine risk.","timing":"Trend is partially extended.","conviction":"Mixed signals across sections."}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			if tt.err != nil {
				gen.On("GenerateContent", mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				gen.On("GenerateContent", mock.Anything, mock.Anything).Return(&interfaces.ContentResponse{Text: tt.answer}, nil)
			}
			_, err := NewService(gen, "", arbor.NewLogger()).Evaluate(context.Background(), stockContext())
			assert.Error(t, err)
		})
	}
}

func TestFallbackReason(t *testing.T) {
	good := scorecard.AIRationale{
		Risk:       "Leverage is modest.",
		Timing:     "Early in the move.",
		Conviction: "Strong insider buying.",
	}
	tests := []struct {
		name     string
		eval     *scorecard.AIEvaluation
		fallback bool
	}{
		{"nil", nil, true},
		{"usable", &scorecard.AIEvaluation{RiskAssessment: scorecard.RiskMinimal, EntryTiming: scorecard.TimingEarly, Conviction: scorecard.ConvictionHigh, Rationale: good}, false},
		{"default triple with real text", &scorecard.AIEvaluation{RiskAssessment: scorecard.RiskModerate, EntryTiming: scorecard.TimingMidway, Conviction: scorecard.ConvictionModerate, Rationale: good}, true},
		{"outside domain", &scorecard.AIEvaluation{RiskAssessment: "catastrophic", EntryTiming: scorecard.TimingEarly, Conviction: scorecard.ConvictionHigh, Rationale: good}, true},
		{"short rationale", &scorecard.AIEvaluation{RiskAssessment: scorecard.RiskMinimal, EntryTiming: scorecard.TimingEarly, Conviction: scorecard.ConvictionHigh,
			Rationale: scorecard.AIRationale{Risk: "ok", Timing: good.Timing, Conviction: good.Conviction}}, true},
		{"stub phrase any case", &scorecard.AIEvaluation{RiskAssessment: scorecard.RiskMinimal, EntryTiming: scorecard.TimingEarly, Conviction: scorecard.ConvictionHigh,
			Rationale: scorecard.AIRationale{Risk: good.Risk, Timing: "Based on LIMITED DATA only.", Conviction: good.Conviction}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fallback, IsFallback(tt.eval), FallbackReason(tt.eval))
		})
	}
}

func TestBuildPromptFollowsOpportunity(t *testing.T) {
	buy := BuildPrompt(stockContext())
	assert.Contains(t, buy, "long (buy)")
	assert.Contains(t, buy, "RSI (14-day): 55.0")
	assert.Contains(t, buy, "Insider Price: $40.00")

	ctx := stockContext()
	ctx.OpportunityType = scorecard.OpportunitySell
	sell := BuildPrompt(ctx)
	assert.Contains(t, sell, "short (sell)")
	assert.Contains(t, sell, "downward")
}

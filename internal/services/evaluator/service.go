// Package evaluator asks a language model to grade risk, entry timing and
// conviction, and rejects stub answers so the job is retried.
package evaluator

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
	"github.com/ternarybob/insiderlens/internal/services/llm"
)

var _ interfaces.AIEvaluator = (*Service)(nil)

// Service implements interfaces.AIEvaluator
type Service struct {
	generator interfaces.ContentGenerator
	model     string
	logger    arbor.ILogger
}

// NewService creates an evaluator. An empty model uses the generator's default.
func NewService(generator interfaces.ContentGenerator, model string, logger arbor.ILogger) *Service {
	return &Service{
		generator: generator,
		model:     model,
		logger:    logger,
	}
}

type evaluationResponse struct {
	RiskAssessment string `json:"riskAssessment"`
	EntryTiming    string `json:"entryTiming"`
	Conviction     string `json:"conviction"`
	Rationale      struct {
		Risk       string `json:"risk"`
		Timing     string `json:"timing"`
		Conviction string `json:"conviction"`
	} `json:"rationale"`
}

// Evaluate returns the model's grading. Provider errors, unparseable answers
// and fallback answers are all returned as errors.
func (s *Service) Evaluate(ctx context.Context, stock models.StockContext) (*scorecard.AIEvaluation, error) {
	resp, err := s.generator.GenerateContent(ctx, &interfaces.ContentRequest{
		Model:             s.model,
		SystemInstruction: systemInstruction,
		Messages:          []interfaces.Message{{Role: "user", Content: BuildPrompt(stock)}},
		OutputSchema:      responseSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("AI evaluation failed: %w", err)
	}

	evaluation, err := ParseEvaluation(resp.Text)
	if err != nil {
		s.logger.Warn().Str("ticker", stock.Ticker).Str("raw", truncate(resp.Text, 200)).Err(err).Msg("Unparseable AI evaluation")
		return nil, err
	}

	if reason := FallbackReason(evaluation); reason != "" {
		s.logger.Warn().Str("ticker", stock.Ticker).Str("reason", reason).Msg("Rejected fallback AI evaluation")
		return nil, fmt.Errorf("AI evaluation rejected as fallback: %s", reason)
	}

	s.logger.Debug().
		Str("ticker", stock.Ticker).
		Str("provider", resp.Provider).
		Str("risk", string(evaluation.RiskAssessment)).
		Str("timing", string(evaluation.EntryTiming)).
		Str("conviction", string(evaluation.Conviction)).
		Msg("AI evaluation accepted")
	return evaluation, nil
}

// ParseEvaluation extracts the evaluation object from a model answer
func ParseEvaluation(text string) (*scorecard.AIEvaluation, error) {
	var parsed evaluationResponse
	if err := llm.DecodeJSON(text, &parsed); err != nil {
		return nil, fmt.Errorf("AI evaluation parse error: %w", err)
	}
	if parsed.RiskAssessment == "" || parsed.EntryTiming == "" || parsed.Conviction == "" {
		return nil, fmt.Errorf("AI evaluation parse error: missing required fields")
	}

	return &scorecard.AIEvaluation{
		RiskAssessment: scorecard.NormalizeCondition(parsed.RiskAssessment),
		EntryTiming:    scorecard.NormalizeCondition(parsed.EntryTiming),
		Conviction:     scorecard.NormalizeCondition(parsed.Conviction),
		Rationale: scorecard.AIRationale{
			Risk:       parsed.Rationale.Risk,
			Timing:     parsed.Rationale.Timing,
			Conviction: parsed.Rationale.Conviction,
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

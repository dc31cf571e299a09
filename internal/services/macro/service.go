// Package macro resolves the industry-scoped macro backdrop applied to every
// ticker in that industry.
package macro

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/common"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
	"github.com/ternarybob/insiderlens/internal/services/llm"
)

var _ interfaces.MacroService = (*Service)(nil)

const defaultMacroScore = 50

// returnSessions covers a 10-session return
const returnSessions = 11

// MarketData is the slice of the market data surface the macro service reads
type MarketData interface {
	interfaces.QuoteProvider
	interfaces.PriceProvider
}

// Service implements interfaces.MacroService
type Service struct {
	store     interfaces.MacroStorage
	market    MarketData
	generator interfaces.ContentGenerator
	model     string
	maxAge    time.Duration
	logger    arbor.ILogger
	now       func() time.Time
}

// NewService creates the macro service. A record younger than maxAge is reused.
func NewService(store interfaces.MacroStorage, market MarketData, generator interfaces.ContentGenerator, model string, maxAge time.Duration, logger arbor.ILogger) *Service {
	return &Service{
		store:     store,
		market:    market,
		generator: generator,
		model:     model,
		maxAge:    maxAge,
		logger:    logger,
		now:       time.Now,
	}
}

type advisorResponse struct {
	MacroScore     *float64 `json:"macroScore"`
	Recommendation string   `json:"recommendation"`
	Summary        string   `json:"summary"`
	Risks          []string `json:"risks"`
}

var advisorSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"macroScore", "recommendation", "summary"},
	"properties": map[string]interface{}{
		"macroScore":     map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
		"recommendation": map[string]interface{}{"type": "string", "enum": []interface{}{"good", "neutral", "risky", "bad"}},
		"summary":        map[string]interface{}{"type": "string"},
		"risks":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
}

// Resolve returns the latest completed record for the industry when it is
// younger than maxAge, otherwise builds, stores and returns a new one.
// An advisor failure yields a neutral degraded record rather than an error.
func (s *Service) Resolve(ctx context.Context, industry string) (*models.MacroAnalysis, error) {
	industry = models.NormalizeIndustry(industry)
	now := s.now()

	existing, err := s.store.GetLatestMacro(ctx, industry, now.Add(-s.maxAge))
	if err == nil {
		s.logger.Debug().Str("industry", industry).Str("macro_id", existing.ID).Msg("Reusing macro analysis")
		return existing, nil
	}
	if !errors.Is(err, interfaces.ErrMacroNotFound) {
		return nil, fmt.Errorf("failed to look up macro analysis: %w", err)
	}

	snapshot := s.Snapshot(ctx, industry)

	analysis := &models.MacroAnalysis{
		ID:             common.NewMacroID(),
		Industry:       industry,
		Status:         models.MacroStatusCompleted,
		MacroScore:     defaultMacroScore,
		Recommendation: models.MacroNeutral,
		Snapshot:       snapshot,
		CreatedAt:      now,
	}

	if advice, err := s.advise(ctx, industry, snapshot); err != nil {
		s.logger.Warn().Err(err).Str("industry", industry).Msg("Macro advisor failed, using neutral backdrop")
		analysis.Status = models.MacroStatusDegraded
		analysis.Summary = "Macro advisor unavailable; neutral backdrop applied."
	} else {
		analysis.MacroScore = clampScore(advice.MacroScore)
		analysis.Recommendation = models.ParseMacroRecommendation(advice.Recommendation)
		analysis.Summary = strings.TrimSpace(advice.Summary)
		analysis.Risks = advice.Risks
		if string(analysis.Recommendation) != strings.ToLower(strings.TrimSpace(advice.Recommendation)) {
			s.logger.Warn().Str("industry", industry).Str("recommendation", advice.Recommendation).Msg("Invalid macro recommendation, defaulted to neutral")
		}
	}
	analysis.MacroFactor = analysis.Recommendation.Factor()

	if err := s.store.SaveMacro(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to save macro analysis: %w", err)
	}

	s.logger.Info().
		Str("industry", industry).
		Str("macro_id", analysis.ID).
		Int("macro_score", analysis.MacroScore).
		Str("recommendation", string(analysis.Recommendation)).
		Float64("factor", analysis.MacroFactor).
		Str("status", analysis.Status).
		Msg("Macro analysis created")
	return analysis, nil
}

// Snapshot reads SPY, VIX and the sector ETF. Failed readings are logged and left zero.
func (s *Service) Snapshot(ctx context.Context, industry string) models.MarketSnapshot {
	snap := models.MarketSnapshot{SectorETF: SectorETF(industry)}

	if q, err := s.market.GetQuote(ctx, SPYSymbol); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to fetch SPY quote")
	} else {
		snap.SPYPrice = q.Price
		snap.SPYChangePercent = q.ChangePercent
	}

	if q, err := s.market.GetQuote(ctx, VIXSymbol); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to fetch VIX quote")
	} else {
		snap.VIXLevel = q.Price
		snap.VIXInterpretation = VIXInterpretation(q.Price)
	}

	spyReturn, spyErr := s.tenDayReturn(ctx, SPYSymbol)
	if spyErr != nil {
		s.logger.Warn().Err(spyErr).Msg("Failed to compute SPY 10-day return")
	} else {
		snap.SPYReturn10d = spyReturn
	}

	if snap.SectorETF != "" {
		sectorReturn, err := s.tenDayReturn(ctx, snap.SectorETF+".US")
		if err != nil {
			s.logger.Warn().Err(err).Str("etf", snap.SectorETF).Msg("Failed to compute sector 10-day return")
		} else {
			snap.SectorReturn10d = sectorReturn
			if spyErr == nil {
				diff := round2(sectorReturn - spyReturn)
				snap.SectorVsSPY10d = &diff
			}
		}
	}
	return snap
}

func (s *Service) tenDayReturn(ctx context.Context, symbol string) (float64, error) {
	candles, err := s.market.GetDailyPrices(ctx, symbol, returnSessions)
	if err != nil {
		return 0, err
	}
	if len(candles) < 2 {
		return 0, fmt.Errorf("not enough sessions for %s", symbol)
	}
	sorted := scorecard.SortCandles(candles)
	first, last := sorted[0].Close, sorted[len(sorted)-1].Close
	if first <= 0 {
		return 0, fmt.Errorf("invalid base price for %s", symbol)
	}
	return round2((last - first) / first * 100), nil
}

func (s *Service) advise(ctx context.Context, industry string, snap models.MarketSnapshot) (*advisorResponse, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("no content generator configured")
	}
	resp, err := s.generator.GenerateContent(ctx, &interfaces.ContentRequest{
		Model:             s.model,
		Temperature:       0.3,
		SystemInstruction: "You are a macro economist advising equity traders on a 1-2 week horizon. Respond with valid JSON only.",
		Messages:          []interfaces.Message{{Role: "user", Content: BuildPrompt(industry, snap)}},
		OutputSchema:      advisorSchema,
	})
	if err != nil {
		return nil, err
	}
	var advice advisorResponse
	if err := llm.DecodeJSON(resp.Text, &advice); err != nil {
		return nil, err
	}
	return &advice, nil
}

// BuildPrompt renders the market snapshot as the advisor prompt
func BuildPrompt(industry string, snap models.MarketSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess market conditions for equity trades in %s over the next 1-2 weeks.\n\n", industry)
	b.WriteString("MARKET DATA:\n")
	fmt.Fprintf(&b, "- SPY: $%.2f (%+.2f%% today, %+.2f%% over 10 sessions)\n", snap.SPYPrice, snap.SPYChangePercent, snap.SPYReturn10d)
	fmt.Fprintf(&b, "- VIX: %.2f (%s)\n", snap.VIXLevel, snap.VIXInterpretation)
	if snap.SectorETF != "" {
		fmt.Fprintf(&b, "- Sector ETF %s: %+.2f%% over 10 sessions", snap.SectorETF, snap.SectorReturn10d)
		if snap.SectorVsSPY10d != nil {
			fmt.Fprintf(&b, " (%+.2f%% vs SPY)", *snap.SectorVsSPY10d)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRecommendation MUST be exactly one of: good (favorable), neutral, risky (elevated volatility or sector weakness), bad (unfavorable).\n")
	b.WriteString(`Respond with {"macroScore": 0-100, "recommendation": "good|neutral|risky|bad", "summary": "2-3 sentences", "risks": ["..."]}`)
	b.WriteString("\n")
	return b.String()
}

func clampScore(v *float64) int {
	if v == nil || math.IsNaN(*v) {
		return defaultMacroScore
	}
	return scorecard.ClampInt(int(math.Round(*v)), 0, 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

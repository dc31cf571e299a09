package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
	macrosvc "github.com/ternarybob/insiderlens/internal/services/macro"
)

// Progress phases written to AnalysisJob.Progress
const (
	PhaseFetchingData     = "fetching_data"
	PhaseMacroAnalysis    = "macro_analysis"
	PhaseMicroAnalysis    = "micro_analysis"
	PhaseCalculatingScore = "calculating_score"
	PhaseCompleted        = "completed"
)

// PipelineDeps are the collaborators of a Pipeline. Evaluator, Narrative and
// Notifier are optional; a nil Evaluator drops the AI section.
type PipelineDeps struct {
	Analyses     interfaces.AnalysisStorage
	Collector    interfaces.DataCollector
	Macro        interfaces.MacroService
	Evaluator    interfaces.AIEvaluator
	Narrative    interfaces.NarrativeGenerator
	Notifier     interfaces.Notifier
	Engine       *scorecard.Engine
	RubricPrompt string
	Metrics      *Metrics
}

// Pipeline implements Processor: collect, macro, score, narrate, integrate
type Pipeline struct {
	deps   PipelineDeps
	logger arbor.ILogger
	now    func() time.Time
}

var _ Processor = (*Pipeline)(nil)

// NewPipeline creates the analysis pipeline
func NewPipeline(deps PipelineDeps, logger arbor.ILogger) *Pipeline {
	if deps.Engine == nil {
		deps.Engine = scorecard.NewEngine(nil)
	}
	if deps.RubricPrompt == "" {
		deps.RubricPrompt = scorecard.RubricPrompt(deps.Engine.Rubric())
	}
	return &Pipeline{deps: deps, logger: logger, now: time.Now}
}

// Process runs every phase for the job's ticker. Any returned error other
// than ErrJobCancelled is a failed attempt.
func (p *Pipeline) Process(ctx context.Context, job *models.AnalysisJob, reporter Reporter) error {
	ticker := job.Ticker
	analysis, err := p.loadAnalysis(ctx, ticker)
	if err != nil {
		return err
	}
	if err := p.deps.Analyses.SetStatus(ctx, ticker, models.AnalysisStatusAnalyzing, ""); err != nil {
		return fmt.Errorf("failed to mark analysis analyzing: %w", err)
	}
	if err := p.deps.Analyses.ResetPhaseFlags(ctx, ticker); err != nil {
		return fmt.Errorf("failed to reset phase flags: %w", err)
	}
	analysis.Phases = models.PhaseFlags{}

	// Data collection
	if err := reporter.Progress(ctx, PhaseFetchingData, "data_fetch", "0/3"); err != nil {
		return err
	}
	start := p.now()
	var progressErr error
	data, err := p.deps.Collector.Collect(ctx, ticker, analysis.OpportunityType, func(substep, _ string) {
		if progressErr == nil {
			progressErr = reporter.Progress(ctx, PhaseFetchingData, "data_fetch", substep)
		}
	})
	if err != nil {
		return fmt.Errorf("data collection failed: %w", err)
	}
	if progressErr != nil {
		return progressErr
	}
	p.deps.Metrics.ObservePhase(PhaseFetchingData, p.now().Sub(start))
	if err := p.markPhase(ctx, analysis, models.PhaseDataCollected); err != nil {
		return err
	}

	// Macro context
	if err := p.checkpoint(ctx, reporter, PhaseMacroAnalysis, "macro"); err != nil {
		return err
	}
	start = p.now()
	macro, err := p.deps.Macro.Resolve(ctx, data.Industry())
	if err != nil {
		return fmt.Errorf("macro analysis failed: %w", err)
	}
	measurements := data.Measurements
	measurements.Macro = macrosvc.Input(macro)
	p.deps.Metrics.ObservePhase(PhaseMacroAnalysis, p.now().Sub(start))
	if err := p.markPhase(ctx, analysis, models.PhaseMacro); err != nil {
		return err
	}

	// Scoring with the AI opinion folded in
	if err := p.checkpoint(ctx, reporter, PhaseMicroAnalysis, "micro"); err != nil {
		return err
	}
	start = p.now()
	stock := p.stockContext(data, measurements)
	card := p.deps.Engine.Generate(measurements, data.Opportunity)

	requireAI := p.deps.Evaluator != nil
	var evaluation *scorecard.AIEvaluation
	if requireAI {
		stock.Scorecard = card
		evaluation, err = p.deps.Evaluator.Evaluate(ctx, stock)
		if err != nil {
			return fmt.Errorf("ai evaluation failed: %w", err)
		}
		measurements.AI = evaluation
		card = p.deps.Engine.Generate(measurements, data.Opportunity)
	}
	if err := card.Validate(requireAI); err != nil {
		return fmt.Errorf("scorecard validation failed: %w", err)
	}
	stock.Measurements = measurements
	stock.Scorecard = card
	p.deps.Metrics.ObservePhase(PhaseMicroAnalysis, p.now().Sub(start))
	if err := p.markPhase(ctx, analysis, models.PhaseScoring); err != nil {
		return err
	}

	// Narrative and integration
	if err := p.checkpoint(ctx, reporter, PhaseCalculatingScore, "integration"); err != nil {
		return err
	}
	start = p.now()
	integrated := IntegratedScore(card, nil, macro.MacroFactor)

	var narrative *models.Narrative
	if p.deps.Narrative != nil {
		narrative, err = p.deps.Narrative.Generate(ctx, models.NarrativeRequest{
			Context:         stock,
			Macro:           macro,
			Filing:          data.Filing,
			NewsCorrelation: data.NewsCorrelation,
			Headlines:       data.News,
			RubricPrompt:    p.deps.RubricPrompt,
			IntegratedScore: integrated,
		})
		if err != nil {
			return fmt.Errorf("narrative generation failed: %w", err)
		}
	}
	p.deps.Metrics.ObservePhase(PhaseCalculatingScore, p.now().Sub(start))

	if err := reporter.Checkpoint(ctx); err != nil {
		return err
	}

	now := p.now()
	p.apply(analysis, data, macro, card, evaluation, narrative, integrated, now)
	analysis.Phases.Set(models.PhaseCombined)
	if err := p.deps.Analyses.SaveAnalysis(ctx, analysis); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	if err := reporter.Progress(ctx, PhaseCompleted, "complete", "100%"); err != nil {
		return err
	}

	p.logger.Info().
		Str("ticker", ticker).
		Str("opportunity", string(data.Opportunity)).
		Int("global_score", card.GlobalScore).
		Int("integrated_score", integrated).
		Float64("macro_factor", macro.MacroFactor).
		Str("confidence", string(card.Confidence)).
		Msg("Analysis completed")

	p.notify(ctx, analysis)
	return nil
}

// IntegratedScore scales the scorecard's global score, or the narrative
// confidence without a scorecard, by the macro factor and clamps to [0,100]
func IntegratedScore(card *scorecard.Scorecard, narrative *models.Narrative, macroFactor float64) int {
	base := 0
	switch {
	case card != nil:
		base = card.GlobalScore
	case narrative != nil:
		base = narrative.ConfidenceScore
	}
	if macroFactor <= 0 {
		macroFactor = 1
	}
	return scorecard.ClampInt(int(math.Round(float64(base)*macroFactor)), 0, 100)
}

func (p *Pipeline) loadAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error) {
	analysis, err := p.deps.Analyses.GetAnalysis(ctx, ticker)
	if errors.Is(err, interfaces.ErrAnalysisNotFound) {
		analysis = models.NewPendingAnalysis(ticker, p.now())
		if err := p.deps.Analyses.SaveAnalysis(ctx, analysis); err != nil {
			return nil, fmt.Errorf("failed to create analysis: %w", err)
		}
		return analysis, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	return analysis, nil
}

// checkpoint stops on cancellation, then records the next phase
func (p *Pipeline) checkpoint(ctx context.Context, reporter Reporter, phase, substep string) error {
	if err := reporter.Checkpoint(ctx); err != nil {
		return err
	}
	return reporter.Progress(ctx, phase, substep, "0/1")
}

func (p *Pipeline) markPhase(ctx context.Context, analysis *models.StockAnalysis, phase models.AnalysisPhase) error {
	if err := p.deps.Analyses.MarkPhaseComplete(ctx, analysis.Ticker, phase); err != nil {
		return fmt.Errorf("failed to mark phase %s: %w", phase, err)
	}
	analysis.Phases.Set(phase)
	return nil
}

func (p *Pipeline) stockContext(data *models.CollectedData, m scorecard.Measurements) models.StockContext {
	stock := models.StockContext{
		Ticker:          data.Ticker,
		Industry:        data.Industry(),
		OpportunityType: data.Opportunity,
		CurrentPrice:    data.CurrentPrice(),
		InsiderPrice:    data.InsiderPrice,
		Measurements:    m,
	}
	if data.Fundamentals != nil {
		stock.CompanyName = data.Fundamentals.Name
	}
	if prev := data.PreviousClose(); prev > 0 {
		change := (stock.CurrentPrice - prev) / prev * 100
		stock.PriceChangePercent = &change
	}
	if m.Insider != nil {
		stock.DaysSinceInsiderTrade = m.Insider.DaysSinceLastTransaction
	}
	return stock
}

// apply copies the run's results onto the persisted analysis
func (p *Pipeline) apply(a *models.StockAnalysis, data *models.CollectedData, macro *models.MacroAnalysis, card *scorecard.Scorecard, evaluation *scorecard.AIEvaluation, narrative *models.Narrative, integrated int, now time.Time) {
	a.Status = models.AnalysisStatusCompleted
	a.ErrorMessage = ""
	a.OpportunityType = data.Opportunity
	a.Industry = data.Industry()
	if data.Fundamentals != nil && data.Fundamentals.Name != "" {
		a.CompanyName = data.Fundamentals.Name
	}

	a.Scorecard = card
	a.AIEvaluation = evaluation
	a.Filing = data.Filing
	a.NewsCorrelation = data.NewsCorrelation
	a.MacroAnalysisID = macro.ID
	a.MacroFactor = macro.MacroFactor
	a.IntegratedScore = &integrated

	a.CurrentPrice = data.CurrentPrice()
	a.PreviousClose = data.PreviousClose()
	a.InsiderPrice = data.InsiderPrice

	a.Narrative = narrative
	if narrative != nil {
		a.OverallRating = narrative.OverallRating
		a.Recommendation = narrative.Recommendation
		a.ConfidenceScore = narrative.ConfidenceScore
		a.Summary = narrative.Summary
		a.FinancialHealthScore = narrative.FinancialHealth.Score
		a.TechnicalScore = narrative.TechnicalScore
		a.SentimentScore = narrative.SentimentScore
	} else {
		a.OverallRating = ""
		a.Recommendation = ""
		a.ConfidenceScore = card.GlobalScore
		a.Summary = card.Summary
		a.FinancialHealthScore = card.SectionScoreOf(scorecard.SectionFundamentals)
		a.TechnicalScore = card.SectionScoreOf(scorecard.SectionTechnicals)
		a.SentimentScore = card.SectionScoreOf(scorecard.SectionNews)
	}

	a.AnalyzedAt = &now
	a.UpdatedAt = now
}

// notify signals subscribers. Failures are logged only.
func (p *Pipeline) notify(ctx context.Context, analysis *models.StockAnalysis) {
	if p.deps.Notifier == nil {
		return
	}
	count, err := p.deps.Notifier.NotifyHighScore(ctx, analysis)
	if err != nil {
		p.logger.Warn().Err(err).Str("ticker", analysis.Ticker).Msg("Notification emission failed")
		return
	}
	if count > 0 {
		p.logger.Info().Str("ticker", analysis.Ticker).Int("notifications", count).Msg("Subscribers notified")
	}
}

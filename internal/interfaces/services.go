package interfaces

import (
	"context"

	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

// ProgressFunc reports a substep and human-readable progress within a phase
type ProgressFunc func(substep, progress string)

// DataCollector fetches and derives everything needed to score a ticker
type DataCollector interface {
	// Collect fails only when required data (daily prices) is unavailable.
	// An empty opportunity is derived from the latest insider transaction.
	Collect(ctx context.Context, ticker string, opportunity scorecard.Opportunity, progress ProgressFunc) (*models.CollectedData, error)
}

// MacroService resolves the macro backdrop for an industry, reusing recent records
type MacroService interface {
	Resolve(ctx context.Context, industry string) (*models.MacroAnalysis, error)
}

// AIEvaluator grades risk, entry timing and conviction.
// A fallback or malformed answer is returned as an error so the job retries.
type AIEvaluator interface {
	Evaluate(ctx context.Context, stock models.StockContext) (*scorecard.AIEvaluation, error)
}

// NarrativeGenerator writes the qualitative report for a completed analysis
type NarrativeGenerator interface {
	Generate(ctx context.Context, request models.NarrativeRequest) (*models.Narrative, error)
}

// Notifier emits high-score notifications for a completed analysis.
// Returns the number of notifications created.
type Notifier interface {
	NotifyHighScore(ctx context.Context, analysis *models.StockAnalysis) (int, error)
}

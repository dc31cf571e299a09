// -----------------------------------------------------------------------
// Stock Analysis - Persisted per-ticker verdict
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/ternarybob/insiderlens/internal/scorecard"
)

// AnalysisStatus is the externally visible state of a StockAnalysis
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusAnalyzing AnalysisStatus = "analyzing"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// AnalysisPhase names a phase-completion flag on StockAnalysis
type AnalysisPhase string

const (
	PhaseDataCollected AnalysisPhase = "data_collected"
	PhaseMacro         AnalysisPhase = "macro"
	PhaseScoring       AnalysisPhase = "scoring"
	PhaseCombined      AnalysisPhase = "combined"
)

// PhaseFlags records completed pipeline phases. Observational only.
type PhaseFlags struct {
	DataCollected bool `json:"data_collected"`
	Macro         bool `json:"macro"`
	Scoring       bool `json:"scoring"`
	Combined      bool `json:"combined"`
}

// Set marks the phase complete. Unknown phases are ignored.
func (f *PhaseFlags) Set(phase AnalysisPhase) {
	switch phase {
	case PhaseDataCollected:
		f.DataCollected = true
	case PhaseMacro:
		f.Macro = true
	case PhaseScoring:
		f.Scoring = true
	case PhaseCombined:
		f.Combined = true
	}
}

// FinancialHealth is the narrative model's view of the balance sheet
type FinancialHealth struct {
	Score      int      `json:"score"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
	RedFlags   []string `json:"red_flags,omitempty"`
}

// Narrative is the qualitative report produced after scoring
type Narrative struct {
	OverallRating   string          `json:"overall_rating"`
	Recommendation  string          `json:"recommendation"`
	ConfidenceScore int             `json:"confidence_score"`
	Summary         string          `json:"summary"`
	FinancialHealth FinancialHealth `json:"financial_health"`
	TechnicalScore  int             `json:"technical_score"`
	TechnicalTrend  string          `json:"technical_trend,omitempty"`
	SentimentScore  int             `json:"sentiment_score"`
	SentimentTrend  string          `json:"sentiment_trend,omitempty"`
	KeyRisks        []string        `json:"key_risks,omitempty"`
	Opportunities   []string        `json:"opportunities,omitempty"`
}

// FilingSummary carries optional filing text used to ground the narrative
type FilingSummary struct {
	FormType   string    `json:"form_type"`
	FilingDate time.Time `json:"filing_date"`
	URL        string    `json:"url"`
	Excerpt    string    `json:"excerpt,omitempty"`
}

// StockAnalysis is the singleton-per-ticker verdict, overwritten on each completed run.
// Key: Ticker.
type StockAnalysis struct {
	Ticker          string                `json:"ticker" badgerhold:"key"`
	Status          AnalysisStatus        `json:"status" badgerhold:"index"`
	OpportunityType scorecard.Opportunity `json:"opportunity_type"`
	CompanyName     string                `json:"company_name,omitempty"`
	Industry        string                `json:"industry,omitempty"`

	OverallRating        string `json:"overall_rating,omitempty"`
	Recommendation       string `json:"recommendation,omitempty"`
	ConfidenceScore      int    `json:"confidence_score"`
	Summary              string `json:"summary,omitempty"`
	FinancialHealthScore int    `json:"financial_health_score"`
	TechnicalScore       int    `json:"technical_score"`
	SentimentScore       int    `json:"sentiment_score"`

	Narrative       *Narrative              `json:"narrative,omitempty"`
	Scorecard       *scorecard.Scorecard    `json:"scorecard,omitempty"`
	AIEvaluation    *scorecard.AIEvaluation `json:"ai_evaluation,omitempty"`
	Filing          *FilingSummary          `json:"filing,omitempty"`
	NewsCorrelation *float64                `json:"news_correlation,omitempty"`

	MacroAnalysisID string  `json:"macro_analysis_id,omitempty"`
	MacroFactor     float64 `json:"macro_factor"`
	IntegratedScore *int    `json:"integrated_score,omitempty"`

	CurrentPrice  float64 `json:"current_price,omitempty"`
	PreviousClose float64 `json:"previous_close,omitempty"`
	InsiderPrice  float64 `json:"insider_price,omitempty"`

	Phases       PhaseFlags `json:"phases"`
	ErrorMessage string     `json:"error_message,omitempty"`
	AnalyzedAt   *time.Time `json:"analyzed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewPendingAnalysis creates an analysis placeholder for a freshly enqueued ticker
func NewPendingAnalysis(ticker string, now time.Time) *StockAnalysis {
	return &StockAnalysis{
		Ticker:      NormalizeTicker(ticker),
		Status:      AnalysisStatusPending,
		MacroFactor: 1.0,
		UpdatedAt:   now,
	}
}

// InsiderTransaction is a single insider trade reported for a ticker
type InsiderTransaction struct {
	Ticker          string    `json:"ticker"`
	InsiderName     string    `json:"insider_name"`
	InsiderTitle    string    `json:"insider_title"`
	TransactionCode string    `json:"transaction_code"` // P purchase, S sale
	TransactionDate time.Time `json:"transaction_date"`
	Shares          float64   `json:"shares"`
	Price           float64   `json:"price"`
	Value           float64   `json:"value"`
}

// IsPurchase reports whether the transaction was an open-market purchase
func (t InsiderTransaction) IsPurchase() bool {
	return t.TransactionCode == "P"
}

// IsSale reports whether the transaction was an open-market sale
func (t InsiderTransaction) IsSale() bool {
	return t.TransactionCode == "S"
}

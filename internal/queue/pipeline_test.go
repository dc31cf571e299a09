package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

type memoryAnalyses struct {
	interfaces.AnalysisStorage
	mu       sync.Mutex
	records  map[string]*models.StockAnalysis
	statuses []models.AnalysisStatus
}

func newMemoryAnalyses() *memoryAnalyses {
	return &memoryAnalyses{records: make(map[string]*models.StockAnalysis)}
}

func (m *memoryAnalyses) GetAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[ticker]
	if !ok {
		return nil, interfaces.ErrAnalysisNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memoryAnalyses) SaveAnalysis(ctx context.Context, a *models.StockAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.records[a.Ticker] = &cp
	return nil
}

func (m *memoryAnalyses) SetStatus(ctx context.Context, ticker string, status models.AnalysisStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	if a, ok := m.records[ticker]; ok {
		a.Status = status
	}
	return nil
}

func (m *memoryAnalyses) MarkPhaseComplete(ctx context.Context, ticker string, phase models.AnalysisPhase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.records[ticker]; ok {
		a.Phases.Set(phase)
	}
	return nil
}

func (m *memoryAnalyses) ResetPhaseFlags(ctx context.Context, ticker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.records[ticker]; ok {
		a.Phases = models.PhaseFlags{}
	}
	return nil
}

type fakeCollector struct {
	data *models.CollectedData
	err  error
}

func (f *fakeCollector) Collect(ctx context.Context, ticker string, opportunity scorecard.Opportunity, progress interfaces.ProgressFunc) (*models.CollectedData, error) {
	for _, step := range []string{"1/3", "2/3", "3/3"} {
		progress(step, "")
	}
	return f.data, f.err
}

type fakeMacro struct {
	analysis *models.MacroAnalysis
	industry string
}

func (f *fakeMacro) Resolve(ctx context.Context, industry string) (*models.MacroAnalysis, error) {
	f.industry = industry
	return f.analysis, nil
}

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(ctx context.Context, stock models.StockContext) (*scorecard.AIEvaluation, error) {
	args := m.Called(stock.Ticker)
	eval, _ := args.Get(0).(*scorecard.AIEvaluation)
	return eval, args.Error(1)
}

type mockNarrative struct {
	mock.Mock
}

func (m *mockNarrative) Generate(ctx context.Context, req models.NarrativeRequest) (*models.Narrative, error) {
	args := m.Called(req.IntegratedScore)
	n, _ := args.Get(0).(*models.Narrative)
	return n, args.Error(1)
}

type countingNotifier struct {
	calls int
	err   error
}

func (n *countingNotifier) NotifyHighScore(ctx context.Context, a *models.StockAnalysis) (int, error) {
	n.calls++
	return 1, n.err
}

type recordingReporter struct {
	mu        sync.Mutex
	phases    []string
	cancelAt  string
	cancelled bool
}

func (r *recordingReporter) Progress(ctx context.Context, phase, substep, progress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return ErrJobCancelled
	}
	r.phases = append(r.phases, phase+":"+progress)
	if phase == r.cancelAt {
		r.cancelled = true
	}
	return nil
}

func (r *recordingReporter) Checkpoint(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return ErrJobCancelled
	}
	return nil
}

func collected() *models.CollectedData {
	return &models.CollectedData{
		Ticker:       "ACME",
		Fundamentals: &models.CompanyFundamentals{Name: "Acme Corp", Industry: "Software"},
		Prices: []scorecard.Candle{
			{Close: 100, Volume: 1000},
			{Close: 104, Volume: 1500},
		},
		Opportunity:  scorecard.OpportunityBuy,
		InsiderPrice: 95,
		Measurements: scorecard.Measurements{
			Ticker: "ACME",
			Fundamentals: &scorecard.FundamentalsInput{
				RevenueGrowthYoY: scorecard.Float(30),
				EPSGrowthYoY:     scorecard.Float(25),
			},
			Insider: &scorecard.InsiderInput{
				NetBuyRatio30d:           scorecard.Float(80),
				DaysSinceLastTransaction: scorecard.Int(3),
				Roles:                    []scorecard.Role{scorecard.RoleCEO},
			},
		},
	}
}

func goodEvaluation() *scorecard.AIEvaluation {
	return &scorecard.AIEvaluation{
		RiskAssessment: scorecard.RiskManageable,
		EntryTiming:    scorecard.TimingOptimal,
		Conviction:     scorecard.ConvictionHigh,
		Rationale: scorecard.AIRationale{
			Risk:       "Balance sheet carries little debt",
			Timing:     "Insider bought three sessions ago",
			Conviction: "CEO purchase with strong growth",
		},
	}
}

type pipelineFixture struct {
	analyses  *memoryAnalyses
	collector *fakeCollector
	macro     *fakeMacro
	evaluator *mockEvaluator
	narrative *mockNarrative
	notifier  *countingNotifier
	pipeline  *Pipeline
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		analyses:  newMemoryAnalyses(),
		collector: &fakeCollector{data: collected()},
		macro: &fakeMacro{analysis: &models.MacroAnalysis{
			ID:             "mac_1",
			Industry:       "Software",
			Status:         models.MacroStatusCompleted,
			Recommendation: models.MacroGood,
			MacroFactor:    1.1,
		}},
		evaluator: &mockEvaluator{},
		narrative: &mockNarrative{},
		notifier:  &countingNotifier{},
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Analyses:  f.analyses,
		Collector: f.collector,
		Macro:     f.macro,
		Evaluator: f.evaluator,
		Narrative: f.narrative,
		Notifier:  f.notifier,
	}, arbor.NewLogger())
	return f
}

func job() *models.AnalysisJob {
	return &models.AnalysisJob{ID: "job_1", Ticker: "ACME", Status: models.JobStatusProcessing}
}

func TestPipelineProcess(t *testing.T) {
	f := newPipelineFixture()
	f.evaluator.On("Evaluate", "ACME").Return(goodEvaluation(), nil)
	f.narrative.On("Generate", mock.Anything).Return(&models.Narrative{
		OverallRating:   "BUY",
		Recommendation:  "Accumulate",
		ConfidenceScore: 74,
		Summary:         "Growth and insider buying align",
		FinancialHealth: models.FinancialHealth{Score: 80},
		TechnicalScore:  60,
		SentimentScore:  55,
	}, nil)

	reporter := &recordingReporter{}
	require.NoError(t, f.pipeline.Process(context.Background(), job(), reporter))

	assert.Equal(t, "Software", f.macro.industry)
	assert.Equal(t, []string{
		"fetching_data:0/3", "fetching_data:1/3", "fetching_data:2/3", "fetching_data:3/3",
		"macro_analysis:0/1", "micro_analysis:0/1", "calculating_score:0/1", "completed:100%",
	}, reporter.phases)

	saved, err := f.analyses.GetAnalysis(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted, saved.Status)
	assert.Equal(t, "Acme Corp", saved.CompanyName)
	assert.Equal(t, "BUY", saved.OverallRating)
	assert.Equal(t, 80, saved.FinancialHealthScore)
	assert.Equal(t, "mac_1", saved.MacroAnalysisID)
	assert.Equal(t, 104.0, saved.CurrentPrice)
	assert.Equal(t, 100.0, saved.PreviousClose)
	assert.Equal(t, 95.0, saved.InsiderPrice)
	require.NotNil(t, saved.Scorecard)
	require.NotNil(t, saved.IntegratedScore)
	assert.Equal(t, IntegratedScore(saved.Scorecard, nil, 1.1), *saved.IntegratedScore)
	assert.True(t, saved.Phases.DataCollected && saved.Phases.Macro && saved.Phases.Scoring && saved.Phases.Combined)
	assert.NotNil(t, saved.AnalyzedAt)

	_, hasAI := saved.Scorecard.Section(scorecard.SectionAI)
	assert.True(t, hasAI)
	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, []models.AnalysisStatus{models.AnalysisStatusAnalyzing}, f.analyses.statuses)
	f.narrative.AssertCalled(t, "Generate", *saved.IntegratedScore)
}

func TestPipelineAIFailureIsFatal(t *testing.T) {
	f := newPipelineFixture()
	f.evaluator.On("Evaluate", "ACME").Return(nil, errors.New("fallback evaluation: default triple"))

	err := f.pipeline.Process(context.Background(), job(), &recordingReporter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai evaluation failed")
	f.narrative.AssertNotCalled(t, "Generate", mock.Anything)
	assert.Zero(t, f.notifier.calls)

	saved, err := f.analyses.GetAnalysis(context.Background(), "ACME")
	require.NoError(t, err)
	assert.NotEqual(t, models.AnalysisStatusCompleted, saved.Status)
}

func TestPipelineCollectorFailure(t *testing.T) {
	f := newPipelineFixture()
	f.collector.err = errors.New("daily prices: upstream 500")

	err := f.pipeline.Process(context.Background(), job(), &recordingReporter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data collection failed")
}

func TestPipelineStopsAtCancellationCheckpoint(t *testing.T) {
	f := newPipelineFixture()
	reporter := &recordingReporter{cancelAt: PhaseMacroAnalysis}

	err := f.pipeline.Process(context.Background(), job(), reporter)
	assert.ErrorIs(t, err, ErrJobCancelled)
	f.evaluator.AssertNotCalled(t, "Evaluate", mock.Anything)
}

func TestPipelineWithoutOptionalServices(t *testing.T) {
	f := newPipelineFixture()
	p := NewPipeline(PipelineDeps{
		Analyses:  f.analyses,
		Collector: f.collector,
		Macro:     f.macro,
	}, arbor.NewLogger())

	require.NoError(t, p.Process(context.Background(), job(), &recordingReporter{}))

	saved, err := f.analyses.GetAnalysis(context.Background(), "ACME")
	require.NoError(t, err)
	_, hasAI := saved.Scorecard.Section(scorecard.SectionAI)
	assert.False(t, hasAI)
	assert.Nil(t, saved.Narrative)
	assert.Equal(t, saved.Scorecard.Summary, saved.Summary)
	assert.Equal(t, saved.Scorecard.SectionScoreOf(scorecard.SectionFundamentals), saved.FinancialHealthScore)
}

func TestPipelineNotifierErrorIsNotFatal(t *testing.T) {
	f := newPipelineFixture()
	f.evaluator.On("Evaluate", "ACME").Return(goodEvaluation(), nil)
	f.narrative.On("Generate", mock.Anything).Return(&models.Narrative{OverallRating: "BUY", Summary: "ok", ConfidenceScore: 70}, nil)
	f.notifier.err = errors.New("sink offline")

	require.NoError(t, f.pipeline.Process(context.Background(), job(), &recordingReporter{}))
	assert.Equal(t, 1, f.notifier.calls)
}

func TestIntegratedScore(t *testing.T) {
	card := &scorecard.Scorecard{GlobalScore: 80}
	tests := []struct {
		name      string
		card      *scorecard.Scorecard
		narrative *models.Narrative
		factor    float64
		want      int
	}{
		{"good macro clamps", card, nil, 1.3, 100},
		{"risky macro", card, nil, 0.8, 64},
		{"bad macro rounds", &scorecard.Scorecard{GlobalScore: 75}, nil, 0.6, 45},
		{"scorecard preferred", card, &models.Narrative{ConfidenceScore: 10}, 1.0, 80},
		{"narrative fallback", nil, &models.Narrative{ConfidenceScore: 60}, 1.1, 66},
		{"zero factor treated as neutral", card, nil, 0, 80},
		{"nothing", nil, nil, 1.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntegratedScore(tt.card, tt.narrative, tt.factor))
		})
	}
}

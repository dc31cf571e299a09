package macro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

type memoryStore struct {
	records []*models.MacroAnalysis
}

func (m *memoryStore) GetLatestMacro(ctx context.Context, industry string, since time.Time) (*models.MacroAnalysis, error) {
	var latest *models.MacroAnalysis
	for _, r := range m.records {
		if r.Industry == industry && r.Status == models.MacroStatusCompleted && r.CreatedAt.After(since) {
			if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, interfaces.ErrMacroNotFound
	}
	return latest, nil
}

func (m *memoryStore) GetMacro(ctx context.Context, id string) (*models.MacroAnalysis, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, interfaces.ErrMacroNotFound
}

func (m *memoryStore) SaveMacro(ctx context.Context, a *models.MacroAnalysis) error {
	m.records = append(m.records, a)
	return nil
}

type fakeMarket struct {
	quotes map[string]float64
	closes map[string][]float64
}

func (f *fakeMarket) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	p, ok := f.quotes[symbol]
	if !ok {
		return nil, errors.New("no quote")
	}
	return &models.Quote{Symbol: symbol, Price: p, ChangePercent: 0.4}, nil
}

func (f *fakeMarket) GetDailyPrices(ctx context.Context, symbol string, sessions int) ([]scorecard.Candle, error) {
	closes, ok := f.closes[symbol]
	if !ok {
		return nil, errors.New("no prices")
	}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]scorecard.Candle, len(closes))
	for i, c := range closes {
		out[i] = scorecard.Candle{Date: start.AddDate(0, 0, i), Close: c}
	}
	return out, nil
}

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

func newService(store *memoryStore, gen interfaces.ContentGenerator, now time.Time) *Service {
	market := &fakeMarket{
		quotes: map[string]float64{SPYSymbol: 500, VIXSymbol: 17},
		closes: map[string][]float64{SPYSymbol: {100, 102}, "XLK.US": {50, 53}},
	}
	s := NewService(store, market, gen, "", 7*24*time.Hour, arbor.NewLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestResolveCreatesAndReuses(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &memoryStore{}
	gen := &mockGenerator{}
	gen.On("GenerateContent", mock.Anything, mock.Anything).
		Return(&interfaces.ContentResponse{Text: `{"macroScore": 72.6, "recommendation": "Good", "summary": "Momentum is constructive."}`}, nil).Once()

	svc := newService(store, gen, now)
	first, err := svc.Resolve(context.Background(), "Software")
	require.NoError(t, err)
	assert.Equal(t, 73, first.MacroScore)
	assert.Equal(t, models.MacroGood, first.Recommendation)
	assert.Equal(t, 1.1, first.MacroFactor)
	assert.Equal(t, "XLK", first.Snapshot.SectorETF)
	assert.Equal(t, "moderate_fear", first.Snapshot.VIXInterpretation)
	require.NotNil(t, first.Snapshot.SectorVsSPY10d)
	assert.InDelta(t, 4.0, *first.Snapshot.SectorVsSPY10d, 0.001)

	svc.now = func() time.Time { return now.Add(6 * 24 * time.Hour) }
	again, err := svc.Resolve(context.Background(), "Software")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	gen.AssertNumberOfCalls(t, "GenerateContent", 1)
}

func TestResolveExpiredRecord(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &memoryStore{records: []*models.MacroAnalysis{{
		ID: "mac_old", Industry: models.GeneralMarket, Status: models.MacroStatusCompleted, CreatedAt: now.Add(-8 * 24 * time.Hour),
	}}}
	gen := &mockGenerator{}
	gen.On("GenerateContent", mock.Anything, mock.Anything).
		Return(&interfaces.ContentResponse{Text: `{"macroScore": 40, "recommendation": "sideways", "summary": "Choppy."}`}, nil)

	a, err := newService(store, gen, now).Resolve(context.Background(), "N/A")
	require.NoError(t, err)
	assert.NotEqual(t, "mac_old", a.ID)
	assert.Equal(t, models.GeneralMarket, a.Industry)
	assert.Equal(t, models.MacroNeutral, a.Recommendation)
	assert.Equal(t, 1.0, a.MacroFactor)
	assert.Empty(t, a.Snapshot.SectorETF)
}

func TestResolveDegradesOnAdvisorFailure(t *testing.T) {
	store := &memoryStore{}
	gen := &mockGenerator{}
	gen.On("GenerateContent", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	a, err := newService(store, gen, time.Now()).Resolve(context.Background(), "Banks")
	require.NoError(t, err)
	assert.Equal(t, models.MacroStatusDegraded, a.Status)
	assert.Equal(t, 50, a.MacroScore)
	assert.Equal(t, 1.0, a.MacroFactor)

	// Degraded records are not reused
	_, err = store.GetLatestMacro(context.Background(), "Banks", time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, interfaces.ErrMacroNotFound)
}

func TestVIXInterpretation(t *testing.T) {
	tests := []struct {
		vix  float64
		want string
	}{
		{12, "low_fear"}, {15, "moderate_fear"}, {19.9, "moderate_fear"}, {20, "high_fear"}, {29.9, "high_fear"}, {30, "extreme_fear"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VIXInterpretation(tt.vix))
	}
}

func TestRiskCondition(t *testing.T) {
	mk := func(r models.MacroRecommendation, vix float64) *models.MacroAnalysis {
		return &models.MacroAnalysis{Recommendation: r, Snapshot: models.MarketSnapshot{VIXLevel: vix}}
	}
	assert.Equal(t, scorecard.MacroTailwinds, RiskCondition(mk(models.MacroGood, 14)))
	assert.Equal(t, scorecard.MacroLowRisk, RiskCondition(mk(models.MacroGood, 24)))
	assert.Equal(t, scorecard.MacroNeutral, RiskCondition(mk(models.MacroNeutral, 18)))
	assert.Equal(t, scorecard.MacroHeadwinds, RiskCondition(mk(models.MacroNeutral, 35)))
	assert.Equal(t, scorecard.MacroHeadwinds, RiskCondition(mk(models.MacroRisky, 18)))
	assert.Equal(t, scorecard.MacroSevere, RiskCondition(mk(models.MacroBad, 18)))
	assert.Equal(t, scorecard.Condition(""), RiskCondition(nil))
}

func TestSectorETF(t *testing.T) {
	assert.Equal(t, "XLK", SectorETF("Semiconductors"))
	assert.Equal(t, "XLRE", SectorETF(" REITs "))
	assert.Equal(t, "", SectorETF("N/A"))
	assert.Equal(t, "", SectorETF("Shell Companies"))
}

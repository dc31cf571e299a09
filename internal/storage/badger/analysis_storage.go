package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AnalysisStorage implements the AnalysisStorage interface for Badger.
// StockAnalysis is keyed by ticker, one record per ticker.
type AnalysisStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAnalysisStorage creates a new AnalysisStorage instance
func NewAnalysisStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalysisStorage {
	return &AnalysisStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AnalysisStorage) GetAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error) {
	var analysis models.StockAnalysis
	if err := s.db.Store().Get(models.NormalizeTicker(ticker), &analysis); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &analysis, nil
}

func (s *AnalysisStorage) SaveAnalysis(ctx context.Context, analysis *models.StockAnalysis) error {
	if analysis == nil || analysis.Ticker == "" {
		return fmt.Errorf("analysis ticker is required")
	}
	analysis.Ticker = models.NormalizeTicker(analysis.Ticker)
	analysis.UpdatedAt = time.Now()

	// Dereference: badgerhold keys the record type by its value type
	if err := s.db.Store().Upsert(analysis.Ticker, *analysis); err != nil {
		s.logger.Error().Err(err).Str("ticker", analysis.Ticker).Msg("BadgerDB: Failed to save analysis")
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// mutate applies fn to the stored analysis, creating a pending one if missing
func (s *AnalysisStorage) mutate(ticker string, fn func(a *models.StockAnalysis)) error {
	ticker = models.NormalizeTicker(ticker)
	return s.db.Update(func(tx *badger.Txn) error {
		now := time.Now()
		var analysis models.StockAnalysis
		err := s.db.Store().TxGet(tx, ticker, &analysis)
		if errors.Is(err, badgerhold.ErrNotFound) {
			analysis = *models.NewPendingAnalysis(ticker, now)
		} else if err != nil {
			return fmt.Errorf("failed to get analysis: %w", err)
		}
		fn(&analysis)
		analysis.UpdatedAt = now
		return s.db.Store().TxUpsert(tx, ticker, analysis)
	})
}

func (s *AnalysisStorage) SetStatus(ctx context.Context, ticker string, status models.AnalysisStatus, errMsg string) error {
	return s.mutate(ticker, func(a *models.StockAnalysis) {
		a.Status = status
		a.ErrorMessage = errMsg
	})
}

func (s *AnalysisStorage) MarkPhaseComplete(ctx context.Context, ticker string, phase models.AnalysisPhase) error {
	return s.mutate(ticker, func(a *models.StockAnalysis) {
		a.Phases.Set(phase)
	})
}

func (s *AnalysisStorage) ResetPhaseFlags(ctx context.Context, ticker string) error {
	return s.mutate(ticker, func(a *models.StockAnalysis) {
		a.Phases = models.PhaseFlags{}
	})
}

// ListStale returns completed analyses last analysed before cutoff, oldest first
func (s *AnalysisStorage) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.StockAnalysis, error) {
	var completed []models.StockAnalysis
	query := badgerhold.Where("Status").Eq(models.AnalysisStatusCompleted).Index("Status")
	if err := s.db.Store().Find(&completed, query); err != nil {
		return nil, fmt.Errorf("failed to list completed analyses: %w", err)
	}

	var stale []*models.StockAnalysis
	for i := range completed {
		a := &completed[i]
		if a.AnalyzedAt == nil || a.AnalyzedAt.Before(cutoff) {
			stale = append(stale, a)
		}
	}
	sortByAnalyzedAt(stale)
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *AnalysisStorage) ListAnalyses(ctx context.Context, limit int) ([]*models.StockAnalysis, error) {
	query := badgerhold.Where("Ticker").Ne("").SortBy("UpdatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	var analyses []models.StockAnalysis
	if err := s.db.Store().Find(&analyses, query); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	result := make([]*models.StockAnalysis, len(analyses))
	for i := range analyses {
		result[i] = &analyses[i]
	}
	return result, nil
}

// sortByAnalyzedAt orders never-analysed records first, then oldest first
func sortByAnalyzedAt(list []*models.StockAnalysis) {
	sort.SliceStable(list, func(i, j int) bool {
		return analyzedBefore(list[i], list[j])
	})
}

func analyzedBefore(a, b *models.StockAnalysis) bool {
	switch {
	case a.AnalyzedAt == nil:
		return b.AnalyzedAt != nil
	case b.AnalyzedAt == nil:
		return false
	default:
		return a.AnalyzedAt.Before(*b.AnalyzedAt)
	}
}

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// MacroStorage implements the MacroStorage interface for Badger
type MacroStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMacroStorage creates a new MacroStorage instance
func NewMacroStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MacroStorage {
	return &MacroStorage{
		db:     db,
		logger: logger,
	}
}

// GetLatestMacro returns the newest completed record for the industry created after since.
// Degraded records are never reused.
func (s *MacroStorage) GetLatestMacro(ctx context.Context, industry string, since time.Time) (*models.MacroAnalysis, error) {
	var records []models.MacroAnalysis
	query := badgerhold.Where("Industry").Eq(models.NormalizeIndustry(industry)).Index("Industry").
		And("Status").Eq(models.MacroStatusCompleted).
		And("CreatedAt").Gt(since).
		SortBy("CreatedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to find macro analysis: %w", err)
	}
	if len(records) == 0 {
		return nil, interfaces.ErrMacroNotFound
	}
	return &records[0], nil
}

func (s *MacroStorage) GetMacro(ctx context.Context, id string) (*models.MacroAnalysis, error) {
	var record models.MacroAnalysis
	if err := s.db.Store().Get(id, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrMacroNotFound
		}
		return nil, fmt.Errorf("failed to get macro analysis: %w", err)
	}
	return &record, nil
}

func (s *MacroStorage) SaveMacro(ctx context.Context, analysis *models.MacroAnalysis) error {
	if analysis == nil || analysis.ID == "" {
		return fmt.Errorf("macro analysis ID is required")
	}
	analysis.Industry = models.NormalizeIndustry(analysis.Industry)
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(analysis.ID, *analysis); err != nil {
		return fmt.Errorf("failed to save macro analysis: %w", err)
	}
	s.logger.Debug().
		Str("macro_id", analysis.ID).
		Str("industry", analysis.Industry).
		Str("recommendation", string(analysis.Recommendation)).
		Msg("BadgerDB: Macro analysis saved")
	return nil
}

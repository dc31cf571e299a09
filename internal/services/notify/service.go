// -----------------------------------------------------------------------
// Notify Service - high-score alerts for eligible subscribers
// Delivery is external; this service only writes to the notification sink
// -----------------------------------------------------------------------

package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/common"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

var _ interfaces.Notifier = (*Service)(nil)

// DefaultThreshold is the integrated score a completed analysis must exceed
const DefaultThreshold = 70

// Metadata keys attached to every notification
const (
	MetaCurrentPrice       = "currentPrice"
	MetaInsiderPrice       = "insiderPrice"
	MetaPriceChange        = "priceChange"
	MetaPriceChangePercent = "priceChangePercent"
)

// Service implements interfaces.Notifier
type Service struct {
	notifications interfaces.NotificationStorage
	subscribers   interfaces.SubscriberStorage
	threshold     int
	enabled       bool
	logger        arbor.ILogger
	now           func() time.Time
}

// NewService creates a notify service from the [notify] config
func NewService(notifications interfaces.NotificationStorage, subscribers interfaces.SubscriberStorage, config common.NotifyConfig, logger arbor.ILogger) *Service {
	threshold := config.ScoreThreshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		notifications: notifications,
		subscribers:   subscribers,
		threshold:     threshold,
		enabled:       config.Enabled,
		logger:        logger,
		now:           time.Now,
	}
}

// ShouldNotify reports whether a completed analysis is high conviction
func (s *Service) ShouldNotify(analysis *models.StockAnalysis) bool {
	if !s.enabled || analysis == nil || analysis.IntegratedScore == nil {
		return false
	}
	return analysis.Status == models.AnalysisStatusCompleted && *analysis.IntegratedScore > s.threshold
}

// NotifyHighScore emits one notification per eligible subscriber and returns
// how many were created. Duplicates for the same day are skipped.
func (s *Service) NotifyHighScore(ctx context.Context, analysis *models.StockAnalysis) (int, error) {
	if !s.ShouldNotify(analysis) {
		return 0, nil
	}

	subscribers, err := s.subscribers.ListEligibleSubscribers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		s.logger.Debug().Str("ticker", analysis.Ticker).Msg("No eligible subscribers")
		return 0, nil
	}

	kind := NotificationType(analysis.OpportunityType)
	score := *analysis.IntegratedScore
	message, metadata := BuildMessage(analysis)
	now := s.now()

	created, duplicates := 0, 0
	for _, sub := range subscribers {
		n := &models.Notification{
			DedupKey:  models.NotificationDedupKey(sub.ID, analysis.Ticker, kind, now),
			ID:        common.NewNotificationID(),
			UserID:    sub.ID,
			Ticker:    analysis.Ticker,
			Type:      kind,
			Score:     score,
			Message:   message,
			Metadata:  metadata,
			CreatedAt: now,
		}
		if err := s.notifications.CreateNotification(ctx, n); err != nil {
			if errors.Is(err, interfaces.ErrDuplicateNotification) {
				duplicates++
				continue
			}
			return created, fmt.Errorf("failed to create notification for %s: %w", sub.ID, err)
		}
		created++
	}

	s.logger.Info().
		Str("ticker", analysis.Ticker).
		Str("type", string(kind)).
		Int("score", score).
		Int("created", created).
		Int("duplicates", duplicates).
		Msg("High score notifications emitted")
	return created, nil
}

// NotificationType maps an opportunity onto its notification type
func NotificationType(opportunity scorecard.Opportunity) models.NotificationType {
	if opportunity.OrDefault() == scorecard.OpportunitySell {
		return models.NotificationHighScoreSell
	}
	return models.NotificationHighScoreBuy
}

// BuildMessage renders the alert text and price metadata. The reference price
// is the insider transaction price, else the previous close.
func BuildMessage(analysis *models.StockAnalysis) (string, map[string]float64) {
	score := 0
	if analysis.IntegratedScore != nil {
		score = *analysis.IntegratedScore
	}

	reference := analysis.InsiderPrice
	if reference <= 0 {
		reference = analysis.PreviousClose
	}

	var change, changePct float64
	if reference > 0 && analysis.CurrentPrice > 0 {
		change = analysis.CurrentPrice - reference
		changePct = change / reference * 100
	}

	metadata := map[string]float64{
		MetaCurrentPrice:       analysis.CurrentPrice,
		MetaInsiderPrice:       analysis.InsiderPrice,
		MetaPriceChange:        round2(change),
		MetaPriceChangePercent: round2(changePct),
	}

	var text string
	if analysis.OpportunityType.OrDefault() == scorecard.OpportunitySell {
		switch {
		case changePct < -5:
			text = fmt.Sprintf("SELL NOW - Price dropped %.1f%% since insider sold. Exit position!", math.Abs(changePct))
		case changePct > 3:
			text = fmt.Sprintf("SELL SIGNAL - Price up %.1f%% despite insider selling. Take profits!", changePct)
		default:
			text = fmt.Sprintf("Strong SELL signal (%d/100). Insider caution confirmed.", score)
		}
	} else {
		switch {
		case changePct > 5:
			text = fmt.Sprintf("STRONG BUY - Price up %.1f%% since insider bought. Consider entry.", changePct)
		case changePct < -3:
			text = fmt.Sprintf("BUY OPPORTUNITY - Price down %.1f%% since insider bought. Better entry point!", math.Abs(changePct))
		default:
			text = fmt.Sprintf("Strong BUY signal (%d/100). Insider confidence confirmed.", score)
		}
	}
	return analysis.Ticker + ": " + text, metadata
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

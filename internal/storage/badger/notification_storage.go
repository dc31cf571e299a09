package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// NotificationStorage implements the NotificationStorage interface for Badger.
// Records are keyed by their dedup key so the insert itself enforces
// one notification per user, ticker, type and day.
type NotificationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewNotificationStorage creates a new NotificationStorage instance
func NewNotificationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.NotificationStorage {
	return &NotificationStorage{
		db:     db,
		logger: logger,
	}
}

func (s *NotificationStorage) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if notification == nil || notification.UserID == "" {
		return fmt.Errorf("notification user is required")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	notification.DedupKey = models.NotificationDedupKey(notification.UserID, notification.Ticker, notification.Type, notification.CreatedAt)

	err := s.db.Update(func(tx *badger.Txn) error {
		return s.db.Store().TxInsert(tx, notification.DedupKey, *notification)
	})
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return interfaces.ErrDuplicateNotification
	}
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationStorage) ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []models.Notification
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	result := make([]*models.Notification, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

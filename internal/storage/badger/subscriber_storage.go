package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SubscriberStorage implements the SubscriberStorage interface for Badger
type SubscriberStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSubscriberStorage creates a new SubscriberStorage instance
func NewSubscriberStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SubscriberStorage {
	return &SubscriberStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SubscriberStorage) SaveSubscriber(ctx context.Context, subscriber *models.Subscriber) error {
	if subscriber == nil || subscriber.ID == "" {
		return fmt.Errorf("subscriber ID is required")
	}
	if subscriber.CreatedAt.IsZero() {
		subscriber.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(subscriber.ID, *subscriber); err != nil {
		return fmt.Errorf("failed to save subscriber: %w", err)
	}
	return nil
}

func (s *SubscriberStorage) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	var records []models.Subscriber
	if err := s.db.Store().Find(&records, badgerhold.Where("ID").Ne("").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	result := make([]*models.Subscriber, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// ListEligibleSubscribers returns active, unarchived subscribers
func (s *SubscriberStorage) ListEligibleSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	all, err := s.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	eligible := make([]*models.Subscriber, 0, len(all))
	for _, sub := range all {
		if sub.Eligible() {
			eligible = append(eligible, sub)
		}
	}
	return eligible, nil
}

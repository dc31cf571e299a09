package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
)

func TestNotificationStorage_DedupPerDay(t *testing.T) {
	s := NewNotificationStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	n := func(at time.Time, kind models.NotificationType) *models.Notification {
		return &models.Notification{
			ID:        "ntf",
			UserID:    "user-1",
			Ticker:    "AAPL",
			Type:      kind,
			Score:     81,
			CreatedAt: at,
		}
	}

	require.NoError(t, s.CreateNotification(ctx, n(day, models.NotificationHighScoreBuy)))
	assert.ErrorIs(t, s.CreateNotification(ctx, n(day.Add(3*time.Hour), models.NotificationHighScoreBuy)), interfaces.ErrDuplicateNotification)

	// A different type or a different day is a new notification
	require.NoError(t, s.CreateNotification(ctx, n(day, models.NotificationHighScoreSell)))
	require.NoError(t, s.CreateNotification(ctx, n(day.AddDate(0, 0, 1), models.NotificationHighScoreBuy)))

	list, err := s.ListNotifications(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.After(list[2].CreatedAt))

	other, err := s.ListNotifications(ctx, "user-2", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSubscriberStorage_Eligible(t *testing.T) {
	s := NewSubscriberStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, s.SaveSubscriber(ctx, &models.Subscriber{ID: "a", SubscriptionStatus: models.SubscriptionActive}))
	require.NoError(t, s.SaveSubscriber(ctx, &models.Subscriber{ID: "b", SubscriptionStatus: models.SubscriptionActive, Archived: true}))
	require.NoError(t, s.SaveSubscriber(ctx, &models.Subscriber{ID: "c", SubscriptionStatus: "past_due"}))

	all, err := s.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	eligible, err := s.ListEligibleSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "a", eligible[0].ID)
}

func TestMacroStorage_GetLatest(t *testing.T) {
	s := NewMacroStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	save := func(id, industry, status string, age time.Duration) {
		require.NoError(t, s.SaveMacro(ctx, &models.MacroAnalysis{
			ID:        id,
			Industry:  industry,
			Status:    status,
			CreatedAt: now.Add(-age),
		}))
	}
	save("old", "Semiconductors", models.MacroStatusCompleted, 6*24*time.Hour)
	save("new", "Semiconductors", models.MacroStatusCompleted, 24*time.Hour)
	save("degraded", "Semiconductors", models.MacroStatusDegraded, time.Hour)
	save("expired", "Banks", models.MacroStatusCompleted, 8*24*time.Hour)
	save("general", "N/A", models.MacroStatusCompleted, time.Hour)

	since := now.Add(-7 * 24 * time.Hour)

	got, err := s.GetLatestMacro(ctx, "Semiconductors", since)
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)

	_, err = s.GetLatestMacro(ctx, "Banks", since)
	assert.ErrorIs(t, err, interfaces.ErrMacroNotFound)

	general, err := s.GetLatestMacro(ctx, "", since)
	require.NoError(t, err)
	assert.Equal(t, "general", general.ID)
	assert.Equal(t, models.GeneralMarket, general.Industry)
}

func TestKVStorage_CaseInsensitive(t *testing.T) {
	s := NewKVStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "EODHD_API_KEY", "first", "market data"))
	require.NoError(t, s.Set(ctx, "eodhd_api_key", "second", "market data"))

	v, err := s.Get(ctx, " Eodhd_Api_Key ")
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	pairs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.False(t, pairs[0].CreatedAt.After(pairs[0].UpdatedAt))

	require.NoError(t, s.Delete(ctx, "EODHD_API_KEY"))
	_, err = s.Get(ctx, "eodhd_api_key")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "eodhd_api_key"), interfaces.ErrKeyNotFound)
}

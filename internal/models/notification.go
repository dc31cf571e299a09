package models

import (
	"strings"
	"time"
)

// NotificationType classifies an emitted notification
type NotificationType string

const (
	NotificationHighScoreBuy  NotificationType = "high_score_buy"
	NotificationHighScoreSell NotificationType = "high_score_sell"
)

// Notification is a single alert for one subscriber.
// Key: DedupKey, which allows one notification per user, ticker, type and day.
type Notification struct {
	DedupKey  string             `json:"dedup_key" badgerhold:"key"`
	ID        string             `json:"id"`
	UserID    string             `json:"user_id" badgerhold:"index"`
	Ticker    string             `json:"ticker"`
	Type      NotificationType   `json:"type"`
	Score     int                `json:"score"`
	Message   string             `json:"message"`
	Metadata  map[string]float64 `json:"metadata,omitempty"`
	IsRead    bool               `json:"is_read"`
	CreatedAt time.Time          `json:"created_at"`
}

// NotificationDedupKey builds the per-day uniqueness key for a notification
func NotificationDedupKey(userID, ticker string, kind NotificationType, at time.Time) string {
	return strings.Join([]string{userID, NormalizeTicker(ticker), string(kind), at.UTC().Format("2006-01-02")}, "|")
}

// Subscriber is a user eligible to receive notifications. Key: ID.
type Subscriber struct {
	ID                 string    `json:"id" badgerhold:"key"`
	Email              string    `json:"email"`
	SubscriptionStatus string    `json:"subscription_status"`
	Archived           bool      `json:"archived"`
	CreatedAt          time.Time `json:"created_at"`
}

// SubscriptionActive is the only subscription status that receives alerts
const SubscriptionActive = "active"

// Eligible reports whether the subscriber should receive notifications
func (s Subscriber) Eligible() bool {
	return s.SubscriptionStatus == SubscriptionActive && !s.Archived
}

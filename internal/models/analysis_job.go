// -----------------------------------------------------------------------
// Analysis Job - Queued unit of per-ticker analysis work
// -----------------------------------------------------------------------

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an AnalysisJob
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsActive reports whether the status blocks another job for the same ticker
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// IsTerminal reports whether no further transitions are expected
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobPriority determines dequeue ordering
type JobPriority string

const (
	PriorityHigh   JobPriority = "high"
	PriorityNormal JobPriority = "normal"
	PriorityLow    JobPriority = "low"
)

// Rank returns the sort rank of the priority (lower is dequeued first).
// Unknown priorities sort with normal.
func (p JobPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// ParsePriority converts a string into a JobPriority, defaulting to normal
func ParsePriority(s string) JobPriority {
	switch JobPriority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Job sources (informational only)
const (
	SourceManual           = "manual"
	SourceScheduledRefresh = "scheduled_refresh"
	SourceFilingAlert      = "filing_alert"
)

// DefaultMaxRetries is applied to new jobs
const DefaultMaxRetries = 3

// JobProgress is observability metadata updated throughout processing
type JobProgress struct {
	Phase     string    `json:"phase"`
	Substep   string    `json:"substep,omitempty"`
	Progress  string    `json:"progress,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisJob is the unit of queued work for a single ticker.
// Key: ID. Ticker and Status are indexed for the active-job guard and dequeue scans.
type AnalysisJob struct {
	ID          string      `json:"id" badgerhold:"key"`
	Ticker      string      `json:"ticker" badgerhold:"index"`
	Status      JobStatus   `json:"status" badgerhold:"index"`
	Priority    JobPriority `json:"priority"`
	Source      string      `json:"source"`
	RetryCount  int         `json:"retry_count"`
	MaxRetries  int         `json:"max_retries"`
	Progress    JobProgress `json:"progress"`
	LastError   string      `json:"last_error,omitempty"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewAnalysisJob creates a pending job eligible for immediate dequeue
func NewAnalysisJob(ticker, source string, priority JobPriority, now time.Time) *AnalysisJob {
	if source == "" {
		source = SourceManual
	}
	return &AnalysisJob{
		ID:          uuid.New().String(),
		Ticker:      NormalizeTicker(ticker),
		Status:      JobStatusPending,
		Priority:    priority,
		Source:      source,
		MaxRetries:  DefaultMaxRetries,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanRetry reports whether the retry budget still allows another attempt
func (j *AnalysisJob) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// NormalizeTicker uppercases and trims a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// QueueStats summarises job counts per status
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// Total returns the number of jobs across all statuses
func (s QueueStats) Total() int {
	return s.Pending + s.Processing + s.Completed + s.Failed + s.Cancelled
}

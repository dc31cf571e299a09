// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 9:12:40 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/insiderlens/internal/models"
)

// BackoffFunc returns the delay before the next attempt given the retry count
// already consumed by the job.
type BackoffFunc func(retryCount int) time.Duration

// QueueStorage is the durable job queue. Every transition is atomic with
// respect to concurrent callers.
type QueueStorage interface {
	// Enqueue creates a pending job for the ticker and resets its analysis to pending.
	// Returns ErrActiveJobExists when a pending or processing job already exists,
	// unless force is set, in which case the active jobs are cancelled first.
	Enqueue(ctx context.Context, ticker, source string, priority models.JobPriority, force bool) (*models.AnalysisJob, error)

	// DequeueNext atomically claims the highest-priority eligible pending job.
	// Returns nil and no error when nothing is eligible.
	DequeueNext(ctx context.Context) (*models.AnalysisJob, error)

	// GetJob returns a job by ID or ErrJobNotFound
	GetJob(ctx context.Context, id string) (*models.AnalysisJob, error)

	// ListJobs returns jobs newest first. An empty status lists every status.
	ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.AnalysisJob, error)

	// UpdateStatus sets the job status, stamping CompletedAt for terminal states
	UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error

	// UpdateProgress records progress and clears LastError.
	// Returns ErrJobNotActive when the job is no longer processing.
	UpdateProgress(ctx context.Context, id string, progress models.JobProgress) error

	// CompleteJob moves a processing job to completed.
	// Returns ErrJobNotActive when the job is no longer processing.
	CompleteJob(ctx context.Context, id string) error

	// ResetStuckJobs returns processing jobs started before now-timeout to pending,
	// and their analyses with them.
	ResetStuckJobs(ctx context.Context, timeout time.Duration) (int, error)

	// CancelTickerJobs cancels every active job for the ticker. Without a remaining
	// active job the analysis goes back to completed when it has a scorecard,
	// otherwise to failed.
	CancelTickerJobs(ctx context.Context, ticker string) (int, error)

	// SettleCancelled realigns the ticker's analysis after a cancelled job stopped,
	// using the same rules as CancelTickerJobs
	SettleCancelled(ctx context.Context, id string) error

	// FailJob records a failed attempt: the job and the ticker's analysis return to
	// pending (the job rescheduled with backoff) while retries remain, otherwise both are marked failed.
	// Job and analysis are updated in one transaction. Cancelled jobs are left untouched.
	FailJob(ctx context.Context, id string, errMsg string, backoff BackoffFunc) (*models.AnalysisJob, error)

	// ReleaseJob returns an interrupted processing job to pending without
	// consuming a retry
	ReleaseJob(ctx context.Context, id string) error

	// GetQueueStats counts jobs per status
	GetQueueStats(ctx context.Context) (models.QueueStats, error)
}

// AnalysisStorage persists the singleton-per-ticker analysis record
type AnalysisStorage interface {
	// GetAnalysis returns the analysis for the ticker or ErrAnalysisNotFound
	GetAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error)

	// SaveAnalysis upserts the analysis
	SaveAnalysis(ctx context.Context, analysis *models.StockAnalysis) error

	// SetStatus updates only the status (and error message) of an analysis
	SetStatus(ctx context.Context, ticker string, status models.AnalysisStatus, errMsg string) error

	// MarkPhaseComplete sets a single phase-completion flag
	MarkPhaseComplete(ctx context.Context, ticker string, phase models.AnalysisPhase) error

	// ResetPhaseFlags clears every phase-completion flag
	ResetPhaseFlags(ctx context.Context, ticker string) error

	// ListStale returns completed analyses last analysed before cutoff, oldest first
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.StockAnalysis, error)

	// ListAnalyses returns analyses ordered by most recent update
	ListAnalyses(ctx context.Context, limit int) ([]*models.StockAnalysis, error)
}

// MacroStorage persists industry-scoped macro analyses
type MacroStorage interface {
	// GetLatestMacro returns the newest completed record for the industry created after since,
	// or ErrMacroNotFound
	GetLatestMacro(ctx context.Context, industry string, since time.Time) (*models.MacroAnalysis, error)

	// GetMacro returns a record by ID or ErrMacroNotFound
	GetMacro(ctx context.Context, id string) (*models.MacroAnalysis, error)

	// SaveMacro inserts or replaces a record
	SaveMacro(ctx context.Context, analysis *models.MacroAnalysis) error
}

// NotificationStorage is the notification sink
type NotificationStorage interface {
	// CreateNotification inserts the notification.
	// Returns ErrDuplicateNotification when one already exists for the same
	// user, ticker, type and day.
	CreateNotification(ctx context.Context, notification *models.Notification) error

	// ListNotifications returns a user's notifications newest first
	ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
}

// SubscriberStorage persists notification subscribers
type SubscriberStorage interface {
	SaveSubscriber(ctx context.Context, subscriber *models.Subscriber) error
	ListSubscribers(ctx context.Context) ([]*models.Subscriber, error)
	ListEligibleSubscribers(ctx context.Context) ([]*models.Subscriber, error)
}

// StorageManager composes all storage interfaces
type StorageManager interface {
	QueueStorage() QueueStorage
	AnalysisStorage() AnalysisStorage
	MacroStorage() MacroStorage
	NotificationStorage() NotificationStorage
	SubscriberStorage() SubscriberStorage
	KeyValueStorage() KeyValueStorage
	DB() interface{}
	Close() error
}

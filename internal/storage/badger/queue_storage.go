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

// QueueStorage implements the QueueStorage interface for Badger.
// Claims and failure bookkeeping run inside a single badger transaction so two
// workers can never hold the same job.
type QueueStorage struct {
	db         *BadgerDB
	logger     arbor.ILogger
	maxRetries int
	now        func() time.Time
}

// NewQueueStorage creates a new QueueStorage instance
func NewQueueStorage(db *BadgerDB, logger arbor.ILogger) interfaces.QueueStorage {
	return &QueueStorage{
		db:         db,
		logger:     logger,
		maxRetries: models.DefaultMaxRetries,
		now:        time.Now,
	}
}

func activeStatuses() []interface{} {
	return []interface{}{models.JobStatusPending, models.JobStatusProcessing}
}

// Enqueue creates a pending job, cancelling active ones first when force is set
func (s *QueueStorage) Enqueue(ctx context.Context, ticker, source string, priority models.JobPriority, force bool) (*models.AnalysisJob, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	var job *models.AnalysisJob
	cancelled := 0

	err := s.db.Update(func(tx *badger.Txn) error {
		now := s.now()
		cancelled = 0

		var active []models.AnalysisJob
		query := badgerhold.Where("Ticker").Eq(ticker).And("Status").In(activeStatuses()...)
		if err := s.db.Store().TxFind(tx, &active, query); err != nil {
			return fmt.Errorf("failed to check active jobs: %w", err)
		}

		if len(active) > 0 && !force {
			return interfaces.ErrActiveJobExists
		}

		for _, existing := range active {
			existing.Status = models.JobStatusCancelled
			existing.LastError = "superseded by forced re-enqueue"
			existing.CompletedAt = &now
			existing.UpdatedAt = now
			if err := s.db.Store().TxUpsert(tx, existing.ID, existing); err != nil {
				return fmt.Errorf("failed to cancel job %s: %w", existing.ID, err)
			}
			cancelled++
		}

		job = models.NewAnalysisJob(ticker, source, priority, now)
		job.MaxRetries = s.maxRetries
		if err := s.db.Store().TxInsert(tx, job.ID, *job); err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}

		return resetAnalysisTx(s.db, tx, ticker, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("ticker", ticker).
		Str("priority", string(job.Priority)).
		Int("cancelled", cancelled).
		Msg("BadgerDB: Job enqueued")

	return job, nil
}

// resetAnalysisTx puts the ticker's analysis back to pending, keeping the
// previous verdict fields and the last known opportunity type
func resetAnalysisTx(db *BadgerDB, tx *badger.Txn, ticker string, now time.Time) error {
	var analysis models.StockAnalysis
	err := db.Store().TxGet(tx, ticker, &analysis)
	switch {
	case errors.Is(err, badgerhold.ErrNotFound):
		analysis = *models.NewPendingAnalysis(ticker, now)
	case err != nil:
		return fmt.Errorf("failed to load analysis: %w", err)
	default:
		analysis.Status = models.AnalysisStatusPending
		analysis.ErrorMessage = ""
		analysis.UpdatedAt = now
	}
	if err := db.Store().TxUpsert(tx, ticker, analysis); err != nil {
		return fmt.Errorf("failed to reset analysis: %w", err)
	}
	return nil
}

// DequeueNext claims the best eligible pending job: priority first, then oldest.
func (s *QueueStorage) DequeueNext(ctx context.Context) (*models.AnalysisJob, error) {
	var claimed *models.AnalysisJob

	err := s.db.Update(func(tx *badger.Txn) error {
		claimed = nil
		now := s.now()

		var pending []models.AnalysisJob
		if err := s.db.Store().TxFind(tx, &pending, badgerhold.Where("Status").Eq(models.JobStatusPending).Index("Status")); err != nil {
			return fmt.Errorf("failed to scan pending jobs: %w", err)
		}

		eligible := pending[:0]
		for _, j := range pending {
			if !j.ScheduledAt.After(now) {
				eligible = append(eligible, j)
			}
		}
		if len(eligible) == 0 {
			return nil
		}

		sort.SliceStable(eligible, func(a, b int) bool {
			ra, rb := eligible[a].Priority.Rank(), eligible[b].Priority.Rank()
			if ra != rb {
				return ra < rb
			}
			return eligible[a].CreatedAt.Before(eligible[b].CreatedAt)
		})

		job := eligible[0]
		job.Status = models.JobStatusProcessing
		job.StartedAt = &now
		job.UpdatedAt = now
		job.Progress = models.JobProgress{Phase: "claimed", Timestamp: now}
		if err := s.db.Store().TxUpsert(tx, job.ID, job); err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}

	if claimed != nil {
		s.logger.Trace().
			Str("job_id", claimed.ID).
			Str("ticker", claimed.Ticker).
			Int("retry_count", claimed.RetryCount).
			Msg("BadgerDB: Job claimed")
	}
	return claimed, nil
}

// GetJob returns a job by ID or ErrJobNotFound
func (s *QueueStorage) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	if err := s.db.Store().Get(id, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status
func (s *QueueStorage) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.AnalysisJob, error) {
	var query *badgerhold.Query
	if status != "" {
		query = badgerhold.Where("Status").Eq(status).Index("Status")
	} else {
		query = badgerhold.Where("ID").Ne("")
	}
	query = query.SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.AnalysisJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.AnalysisJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// mutateJob applies fn to a job inside a transaction and persists the result
func (s *QueueStorage) mutateJob(id string, fn func(job *models.AnalysisJob, now time.Time) error) (*models.AnalysisJob, error) {
	var out models.AnalysisJob
	err := s.db.Update(func(tx *badger.Txn) error {
		var job models.AnalysisJob
		if err := s.db.Store().TxGet(tx, id, &job); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return interfaces.ErrJobNotFound
			}
			return fmt.Errorf("failed to get job: %w", err)
		}
		now := s.now()
		if err := fn(&job, now); err != nil {
			return err
		}
		job.UpdatedAt = now
		if err := s.db.Store().TxUpsert(tx, job.ID, job); err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus sets the job status, stamping CompletedAt for terminal states
func (s *QueueStorage) UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error {
	_, err := s.mutateJob(id, func(job *models.AnalysisJob, now time.Time) error {
		job.Status = status
		if errMsg != "" {
			job.LastError = errMsg
		}
		if status.IsTerminal() {
			job.CompletedAt = &now
		}
		return nil
	})
	if err == nil {
		s.logger.Trace().Str("job_id", id).Str("status", string(status)).Msg("BadgerDB: Job status updated")
	}
	return err
}

// UpdateProgress records progress for a processing job and clears LastError
func (s *QueueStorage) UpdateProgress(ctx context.Context, id string, progress models.JobProgress) error {
	_, err := s.mutateJob(id, func(job *models.AnalysisJob, now time.Time) error {
		if job.Status != models.JobStatusProcessing {
			return interfaces.ErrJobNotActive
		}
		if progress.Timestamp.IsZero() {
			progress.Timestamp = now
		}
		job.Progress = progress
		job.LastError = ""
		return nil
	})
	return err
}

// CompleteJob marks a processing job completed.
// Returns ErrJobNotActive when the job left processing, e.g. it was cancelled.
func (s *QueueStorage) CompleteJob(ctx context.Context, id string) error {
	_, err := s.mutateJob(id, func(job *models.AnalysisJob, now time.Time) error {
		if job.Status != models.JobStatusProcessing {
			return interfaces.ErrJobNotActive
		}
		job.Status = models.JobStatusCompleted
		job.CompletedAt = &now
		return nil
	})
	if err == nil {
		s.logger.Trace().Str("job_id", id).Msg("BadgerDB: Job completed")
	}
	return err
}

// ResetStuckJobs returns processing jobs started before now-timeout to pending,
// along with their analyses. Retry bookkeeping is left untouched.
func (s *QueueStorage) ResetStuckJobs(ctx context.Context, timeout time.Duration) (int, error) {
	reset := 0
	err := s.db.Update(func(tx *badger.Txn) error {
		reset = 0
		now := s.now()
		cutoff := now.Add(-timeout)

		var processing []models.AnalysisJob
		if err := s.db.Store().TxFind(tx, &processing, badgerhold.Where("Status").Eq(models.JobStatusProcessing).Index("Status")); err != nil {
			return fmt.Errorf("failed to scan processing jobs: %w", err)
		}

		for _, job := range processing {
			if job.StartedAt == nil || !job.StartedAt.Before(cutoff) {
				continue
			}
			job.Status = models.JobStatusPending
			job.StartedAt = nil
			job.ScheduledAt = now
			job.UpdatedAt = now
			job.LastError = fmt.Sprintf("reset after exceeding %s in processing", timeout)
			if err := s.db.Store().TxUpsert(tx, job.ID, job); err != nil {
				return fmt.Errorf("failed to reset job %s: %w", job.ID, err)
			}
			if err := setAnalysisStatusTx(s.db, tx, job.Ticker, models.AnalysisStatusPending, "", now); err != nil {
				return err
			}
			reset++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		s.logger.Warn().Int("count", reset).Str("timeout", timeout.String()).Msg("BadgerDB: Reset stuck jobs")
	}
	return reset, nil
}

// CancelTickerJobs cancels every active job for the ticker
func (s *QueueStorage) CancelTickerJobs(ctx context.Context, ticker string) (int, error) {
	ticker = models.NormalizeTicker(ticker)
	cancelled := 0
	err := s.db.Update(func(tx *badger.Txn) error {
		cancelled = 0
		now := s.now()

		var active []models.AnalysisJob
		query := badgerhold.Where("Ticker").Eq(ticker).And("Status").In(activeStatuses()...)
		if err := s.db.Store().TxFind(tx, &active, query); err != nil {
			return fmt.Errorf("failed to find active jobs: %w", err)
		}
		for _, job := range active {
			job.Status = models.JobStatusCancelled
			job.CompletedAt = &now
			job.UpdatedAt = now
			if err := s.db.Store().TxUpsert(tx, job.ID, job); err != nil {
				return fmt.Errorf("failed to cancel job %s: %w", job.ID, err)
			}
			cancelled++
		}
		if cancelled == 0 {
			return nil
		}
		return settleAnalysisTx(s.db, tx, ticker, now)
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

// SettleCancelled realigns the analysis of a cancelled job with the ticker's
// remaining jobs. Returns ErrJobNotActive if the job was not cancelled.
func (s *QueueStorage) SettleCancelled(ctx context.Context, id string) error {
	return s.db.Update(func(tx *badger.Txn) error {
		var job models.AnalysisJob
		if err := s.db.Store().TxGet(tx, id, &job); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return interfaces.ErrJobNotFound
			}
			return fmt.Errorf("failed to get job: %w", err)
		}
		if job.Status != models.JobStatusCancelled {
			return interfaces.ErrJobNotActive
		}
		return settleAnalysisTx(s.db, tx, job.Ticker, s.now())
	})
}

// settleAnalysisTx derives the analysis status once the ticker's job was cancelled.
// A processing job owns the analysis and a pending one keeps it pending; with no
// active job, the previous verdict is restored if there is one.
func settleAnalysisTx(db *BadgerDB, tx *badger.Txn, ticker string, now time.Time) error {
	var active []models.AnalysisJob
	query := badgerhold.Where("Ticker").Eq(ticker).And("Status").In(activeStatuses()...)
	if err := db.Store().TxFind(tx, &active, query); err != nil {
		return fmt.Errorf("failed to find active jobs: %w", err)
	}
	for _, job := range active {
		if job.Status == models.JobStatusProcessing {
			return nil
		}
	}
	if len(active) > 0 {
		return setAnalysisStatusTx(db, tx, ticker, models.AnalysisStatusPending, "", now)
	}

	var analysis models.StockAnalysis
	err := db.Store().TxGet(tx, ticker, &analysis)
	switch {
	case errors.Is(err, badgerhold.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load analysis: %w", err)
	}
	if analysis.Scorecard != nil {
		analysis.Status = models.AnalysisStatusCompleted
		analysis.ErrorMessage = ""
	} else {
		analysis.Status = models.AnalysisStatusFailed
		analysis.ErrorMessage = "cancelled"
	}
	analysis.UpdatedAt = now
	if err := db.Store().TxUpsert(tx, ticker, analysis); err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	return nil
}

// setAnalysisStatusTx sets the analysis status, creating the record if missing
func setAnalysisStatusTx(db *BadgerDB, tx *badger.Txn, ticker string, status models.AnalysisStatus, errMsg string, now time.Time) error {
	var analysis models.StockAnalysis
	err := db.Store().TxGet(tx, ticker, &analysis)
	switch {
	case errors.Is(err, badgerhold.ErrNotFound):
		analysis = *models.NewPendingAnalysis(ticker, now)
	case err != nil:
		return fmt.Errorf("failed to load analysis: %w", err)
	}
	analysis.Status = status
	analysis.ErrorMessage = errMsg
	analysis.UpdatedAt = now
	if err := db.Store().TxUpsert(tx, ticker, analysis); err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	return nil
}

// FailJob records a failed attempt. While retries remain the job and the
// ticker's analysis return to pending, with ScheduledAt pushed out by backoff;
// otherwise both are marked failed. Both writes share one transaction.
func (s *QueueStorage) FailJob(ctx context.Context, id string, errMsg string, backoff interfaces.BackoffFunc) (*models.AnalysisJob, error) {
	var out models.AnalysisJob

	err := s.db.Update(func(tx *badger.Txn) error {
		var job models.AnalysisJob
		if err := s.db.Store().TxGet(tx, id, &job); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return interfaces.ErrJobNotFound
			}
			return fmt.Errorf("failed to get job: %w", err)
		}

		// A cancelled job belongs to whoever cancelled it
		if job.Status == models.JobStatusCancelled {
			out = job
			return nil
		}

		now := s.now()
		job.LastError = errMsg
		job.UpdatedAt = now
		job.StartedAt = nil

		var analysis models.StockAnalysis
		err := s.db.Store().TxGet(tx, job.Ticker, &analysis)
		if errors.Is(err, badgerhold.ErrNotFound) {
			analysis = *models.NewPendingAnalysis(job.Ticker, now)
		} else if err != nil {
			return fmt.Errorf("failed to load analysis: %w", err)
		}
		analysis.ErrorMessage = errMsg
		analysis.UpdatedAt = now

		if job.CanRetry() {
			delay := time.Duration(0)
			if backoff != nil {
				delay = backoff(job.RetryCount)
			}
			job.RetryCount++
			job.Status = models.JobStatusPending
			job.ScheduledAt = now.Add(delay)
			analysis.Status = models.AnalysisStatusPending
		} else {
			job.Status = models.JobStatusFailed
			job.CompletedAt = &now
			analysis.Status = models.AnalysisStatusFailed
		}

		if err := s.db.Store().TxUpsert(tx, analysis.Ticker, analysis); err != nil {
			return fmt.Errorf("failed to update analysis: %w", err)
		}

		if err := s.db.Store().TxUpsert(tx, job.ID, job); err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReleaseJob returns an interrupted processing job to pending without consuming a retry
func (s *QueueStorage) ReleaseJob(ctx context.Context, id string) error {
	_, err := s.mutateJob(id, func(job *models.AnalysisJob, now time.Time) error {
		if job.Status != models.JobStatusProcessing {
			return interfaces.ErrJobNotActive
		}
		job.Status = models.JobStatusPending
		job.StartedAt = nil
		job.ScheduledAt = now
		return nil
	})
	return err
}

// GetQueueStats counts jobs per status
func (s *QueueStorage) GetQueueStats(ctx context.Context) (models.QueueStats, error) {
	var stats models.QueueStats
	counts := map[models.JobStatus]*int{
		models.JobStatusPending:    &stats.Pending,
		models.JobStatusProcessing: &stats.Processing,
		models.JobStatusCompleted:  &stats.Completed,
		models.JobStatusFailed:     &stats.Failed,
		models.JobStatusCancelled:  &stats.Cancelled,
	}
	for status, dst := range counts {
		n, err := s.db.Store().Count(&models.AnalysisJob{}, badgerhold.Where("Status").Eq(status).Index("Status"))
		if err != nil {
			return stats, fmt.Errorf("failed to count %s jobs: %w", status, err)
		}
		*dst = int(n)
	}
	return stats, nil
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/common"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
)

// ErrJobCancelled is returned by a Reporter once the job left the processing state
var ErrJobCancelled = errors.New("job cancelled")

// Reporter is handed to a Processor for progress updates and cancellation checkpoints
type Reporter interface {
	// Progress records the current phase. Returns ErrJobCancelled when the
	// job is no longer processing.
	Progress(ctx context.Context, phase, substep, progress string) error

	// Checkpoint returns ErrJobCancelled when the job was cancelled externally
	Checkpoint(ctx context.Context) error
}

// Processor runs the analysis for one claimed job
type Processor interface {
	Process(ctx context.Context, job *models.AnalysisJob, reporter Reporter) error
}

// Worker is the control loop: it reclaims stuck jobs, claims pending jobs up
// to MaxConcurrent and hands them to the Processor.
type Worker struct {
	queue     interfaces.QueueStorage
	processor Processor
	config    Config
	locks     *KeyedMutex
	metrics   *Metrics
	logger    arbor.ILogger
	now       func() time.Time

	done        chan string
	inFlight    int
	nextCleanup time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup
}

// NewWorker creates a worker. metrics may be nil.
func NewWorker(queue interfaces.QueueStorage, processor Processor, config Config, metrics *Metrics, logger arbor.ILogger) *Worker {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	return &Worker{
		queue:     queue,
		processor: processor,
		config:    config,
		locks:     NewKeyedMutex(),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		done:      make(chan string, config.MaxConcurrent),
	}
}

// Start runs the control loop in the background until Stop is called
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return fmt.Errorf("worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopped = make(chan struct{})

	w.logger.Info().
		Int("max_concurrent", w.config.MaxConcurrent).
		Dur("stuck_timeout", w.config.StuckTimeout).
		Msg("Starting analysis worker")

	go func() {
		defer close(w.stopped)
		w.Run(loopCtx)
	}()
	return nil
}

// Stop cancels the loop and waits for in-flight jobs to be released
func (w *Worker) Stop() error {
	w.mu.Lock()
	cancel, stopped := w.cancel, w.stopped
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-stopped

	w.logger.Info().Msg("Analysis worker stopped")
	return nil
}

// Run executes the control loop in the calling goroutine until ctx is done,
// then waits for in-flight jobs.
func (w *Worker) Run(ctx context.Context) {
	defer w.wg.Wait()

	for {
		delay := w.safeIterate(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// safeIterate runs one loop iteration. Errors and panics never escape.
func (w *Worker) safeIterate(ctx context.Context) (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			w.metrics.loopError()
			w.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("Recovered from panic in worker loop")
			delay = w.config.ErrorBackoff
		}
	}()

	delay, err := w.iterate(ctx)
	if err != nil && ctx.Err() == nil {
		w.metrics.loopError()
		w.logger.Warn().Err(err).Msg("Worker loop iteration failed")
		return w.config.ErrorBackoff
	}
	return delay
}

// iterate performs one pass of the loop and returns how long to wait
func (w *Worker) iterate(ctx context.Context) (time.Duration, error) {
	w.reap()

	if now := w.now(); !now.Before(w.nextCleanup) {
		w.nextCleanup = now.Add(w.config.CleanupInterval)
		if err := w.resetStuck(ctx); err != nil {
			return 0, err
		}
	}

	if w.inFlight >= w.config.MaxConcurrent {
		return w.config.PollInterval, nil
	}

	job, err := w.queue.DequeueNext(ctx)
	if err != nil {
		return 0, fmt.Errorf("dequeue failed: %w", err)
	}
	if job == nil {
		return w.config.IdleInterval, nil
	}

	w.dispatch(ctx, job)
	return w.config.DispatchDelay, nil
}

// reap collects finished jobs without blocking
func (w *Worker) reap() {
	for {
		select {
		case <-w.done:
			w.inFlight--
		default:
			return
		}
	}
}

func (w *Worker) resetStuck(ctx context.Context) error {
	n, err := w.queue.ResetStuckJobs(ctx, w.config.StuckTimeout)
	if err != nil {
		return fmt.Errorf("stuck job reset failed: %w", err)
	}
	w.metrics.stuckReset(n)
	if n > 0 {
		w.logger.Warn().Int("count", n).Dur("timeout", w.config.StuckTimeout).Msg("Reset stuck jobs to pending")
	}
	return nil
}

// dispatch processes the job without blocking the loop
func (w *Worker) dispatch(ctx context.Context, job *models.AnalysisJob) {
	w.inFlight++
	w.wg.Add(1)
	w.metrics.dequeued()

	w.logger.Info().
		Str("job_id", job.ID).
		Str("ticker", job.Ticker).
		Str("priority", string(job.Priority)).
		Int("retry_count", job.RetryCount).
		Int("in_flight", w.inFlight).
		Msg("Job dispatched")

	go func() {
		defer func() {
			w.done <- job.ID
			w.wg.Done()
		}()
		w.process(ctx, job)
	}()
}

// process runs one job and records its outcome
func (w *Worker) process(ctx context.Context, job *models.AnalysisJob) {
	unlock := w.locks.Lock(job.Ticker)
	defer unlock()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	start := w.now()
	reporter := &jobReporter{queue: w.queue, jobID: job.ID, now: w.now}
	err := common.RunProtected("job:"+job.Ticker, func() error {
		return w.processor.Process(jobCtx, job, reporter)
	})

	// outcome writes must survive the loop context being cancelled
	writeCtx := context.WithoutCancel(ctx)

	if err == nil {
		if cerr := w.queue.CompleteJob(writeCtx, job.ID); errors.Is(cerr, interfaces.ErrJobNotActive) {
			err = ErrJobCancelled
		} else if cerr != nil {
			w.logger.Error().Err(cerr).Str("job_id", job.ID).Msg("Failed to mark job completed")
		}
	}

	switch {
	case err == nil:
		w.metrics.finished(OutcomeCompleted)
		w.logger.Info().
			Str("job_id", job.ID).
			Str("ticker", job.Ticker).
			Dur("elapsed", w.now().Sub(start)).
			Msg("Job completed")

	case errors.Is(err, ErrJobCancelled):
		w.settleCancelled(writeCtx, job)
		w.metrics.finished(OutcomeCancelled)
		w.logger.Info().Str("job_id", job.ID).Str("ticker", job.Ticker).Msg("Job cancelled, stopping")

	case ctx.Err() != nil:
		if err := w.queue.ReleaseJob(writeCtx, job.ID); err != nil {
			w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to release interrupted job")
		}
		w.metrics.finished(OutcomeReleased)
		w.logger.Info().Str("job_id", job.ID).Str("ticker", job.Ticker).Msg("Job released on shutdown")

	default:
		w.fail(writeCtx, job, err)
	}
}

// fail hands the failed attempt to the store, which decides retry or permanent failure
func (w *Worker) fail(ctx context.Context, job *models.AnalysisJob, cause error) {
	updated, err := w.queue.FailJob(ctx, job.ID, cause.Error(), w.config.Backoff)
	if err != nil {
		w.metrics.finished(OutcomeFailed)
		w.logger.Error().Err(err).Str("job_id", job.ID).Str("cause", cause.Error()).Msg("Failed to record job failure")
		return
	}

	switch updated.Status {
	case models.JobStatusPending:
		w.metrics.finished(OutcomeRetried)
		w.logger.Warn().
			Str("job_id", job.ID).
			Str("ticker", job.Ticker).
			Int("retry_count", updated.RetryCount).
			Str("scheduled_at", updated.ScheduledAt.Format(time.RFC3339)).
			Err(cause).
			Msg("Job failed, retry scheduled")
	case models.JobStatusCancelled:
		w.settleCancelled(ctx, job)
		w.metrics.finished(OutcomeCancelled)
		w.logger.Info().Str("job_id", job.ID).Err(cause).Msg("Cancelled job failed, left cancelled")
	default:
		w.metrics.finished(OutcomeFailed)
		w.logger.Error().
			Str("job_id", job.ID).
			Str("ticker", job.Ticker).
			Int("retry_count", updated.RetryCount).
			Err(cause).
			Msg("Job failed permanently")
	}
}

// jobReporter writes progress to the queue store
type jobReporter struct {
	queue interfaces.QueueStorage
	jobID string
	now   func() time.Time
}

func (r *jobReporter) Progress(ctx context.Context, phase, substep, progress string) error {
	err := r.queue.UpdateProgress(ctx, r.jobID, models.JobProgress{
		Phase:     phase,
		Substep:   substep,
		Progress:  progress,
		Timestamp: r.now(),
	})
	if errors.Is(err, interfaces.ErrJobNotActive) || errors.Is(err, interfaces.ErrJobNotFound) {
		return ErrJobCancelled
	}
	return err
}

func (r *jobReporter) Checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job, err := r.queue.GetJob(ctx, r.jobID)
	if errors.Is(err, interfaces.ErrJobNotFound) {
		return ErrJobCancelled
	}
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusProcessing {
		return ErrJobCancelled
	}
	return nil
}

// settleCancelled realigns the analysis after a cancelled job stops. A job
// that left processing any other way already had its analysis updated.
func (w *Worker) settleCancelled(ctx context.Context, job *models.AnalysisJob) {
	err := w.queue.SettleCancelled(ctx, job.ID)
	if err != nil && !errors.Is(err, interfaces.ErrJobNotActive) {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Str("ticker", job.Ticker).Msg("Failed to settle cancelled analysis")
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/common"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
)

// RefreshJobName is the scheduler name of the stale-analysis refresh
const RefreshJobName = "refresh_stale_analyses"

// RefreshResult summarises one refresh run
type RefreshResult struct {
	Cutoff   time.Time
	Stale    int
	Enqueued int
	Skipped  int
}

// Refresher re-enqueues completed analyses older than the stale window
type Refresher struct {
	queue      interfaces.QueueStorage
	analyses   interfaces.AnalysisStorage
	market     common.MarketSchedule
	staleAfter time.Duration
	limit      int
	timeout    time.Duration
	logger     arbor.ILogger
	now        func() time.Time
}

// NewRefresher creates a refresher from the [scheduler] config
func NewRefresher(queue interfaces.QueueStorage, analyses interfaces.AnalysisStorage, market common.MarketSchedule, config common.SchedulerConfig, logger arbor.ILogger) (*Refresher, error) {
	staleAfter, err := time.ParseDuration(config.StaleAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid stale_after %q: %w", config.StaleAfter, err)
	}
	limit := config.Limit
	if limit <= 0 {
		limit = 50
	}
	return &Refresher{
		queue:      queue,
		analyses:   analyses,
		market:     market,
		staleAfter: staleAfter,
		limit:      limit,
		timeout:    5 * time.Minute,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run enqueues low-priority refresh jobs for stale analyses. Tickers that
// already have an active job are skipped.
func (r *Refresher) Run(ctx context.Context) (RefreshResult, error) {
	cutoff := r.market.StaleCutoff(r.now(), r.staleAfter)
	result := RefreshResult{Cutoff: cutoff}

	stale, err := r.analyses.ListStale(ctx, cutoff, r.limit)
	if err != nil {
		return result, fmt.Errorf("failed to list stale analyses: %w", err)
	}
	result.Stale = len(stale)

	for _, analysis := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		job, err := r.queue.Enqueue(ctx, analysis.Ticker, models.SourceScheduledRefresh, models.PriorityLow, false)
		if errors.Is(err, interfaces.ErrActiveJobExists) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to enqueue %s: %w", analysis.Ticker, err)
		}
		result.Enqueued++
		r.logger.Debug().Str("ticker", job.Ticker).Str("job_id", job.ID).Msg("Refresh job enqueued")
	}

	r.logger.Info().
		Str("cutoff", cutoff.Format(time.RFC3339)).
		Int("stale", result.Stale).
		Int("enqueued", result.Enqueued).
		Int("skipped", result.Skipped).
		Msg("Stale analysis refresh complete")
	return result, nil
}

// Handler adapts Run to the scheduler's job signature
func (r *Refresher) Handler() func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, err := r.Run(ctx)
		return err
	}
}

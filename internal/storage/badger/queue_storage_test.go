package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

func powerOfFiveBackoff(retryCount int) time.Duration {
	d := time.Minute
	for i := 0; i < retryCount; i++ {
		d *= 5
	}
	return d
}

func TestQueueStorage_EnqueueGuard(t *testing.T) {
	q, db, _ := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, " aapl ", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Ticker)
	assert.Equal(t, models.JobStatusPending, first.Status)

	_, err = q.Enqueue(ctx, "AAPL", models.SourceManual, models.PriorityHigh, false)
	assert.ErrorIs(t, err, interfaces.ErrActiveJobExists)

	forced, err := q.Enqueue(ctx, "AAPL", models.SourceManual, models.PriorityHigh, true)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, forced.ID)

	old, err := q.GetJob(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, old.Status)
	assert.NotNil(t, old.CompletedAt)

	stats, err := q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Cancelled)

	analysis, err := NewAnalysisStorage(db, arbor.NewLogger()).GetAnalysis(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending, analysis.Status)
}

func TestQueueStorage_EnqueuePreservesOpportunityType(t *testing.T) {
	q, db, _ := newTestQueue(t)
	ctx := context.Background()
	analyses := NewAnalysisStorage(db, arbor.NewLogger())

	require.NoError(t, analyses.SaveAnalysis(ctx, &models.StockAnalysis{
		Ticker:          "NVDA",
		Status:          models.AnalysisStatusFailed,
		OpportunityType: "SELL",
		ErrorMessage:    "boom",
	}))

	_, err := q.Enqueue(ctx, "NVDA", models.SourceScheduledRefresh, models.PriorityLow, false)
	require.NoError(t, err)

	got, err := analyses.GetAnalysis(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending, got.Status)
	assert.Empty(t, got.ErrorMessage)
	assert.EqualValues(t, "SELL", got.OpportunityType)
}

func TestQueueStorage_DequeueOrdering(t *testing.T) {
	q, _, clock := newTestQueue(t)
	ctx := context.Background()

	enqueue := func(ticker string, p models.JobPriority) {
		_, err := q.Enqueue(ctx, ticker, models.SourceManual, p, false)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	enqueue("LOW1", models.PriorityLow)
	enqueue("NORM1", models.PriorityNormal)
	enqueue("HIGH1", models.PriorityHigh)
	enqueue("NORM2", models.PriorityNormal)
	enqueue("HIGH2", models.PriorityHigh)

	var order []string
	for {
		job, err := q.DequeueNext(ctx)
		require.NoError(t, err)
		if job == nil {
			break
		}
		assert.Equal(t, models.JobStatusProcessing, job.Status)
		assert.NotNil(t, job.StartedAt)
		order = append(order, job.Ticker)
	}

	assert.Equal(t, []string{"HIGH1", "HIGH2", "NORM1", "NORM2", "LOW1"}, order)
}

func TestQueueStorage_DequeueIsExclusive(t *testing.T) {
	db := newTestDB(t)
	q := NewQueueStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for _, ticker := range []string{"A", "B", "C", "D", "E", "F"} {
		_, err := q.Enqueue(ctx, ticker, models.SourceManual, models.PriorityNormal, false)
		require.NoError(t, err)
	}

	var (
		mu     sync.Mutex
		seen   = map[string]int{}
		wg     sync.WaitGroup
		errors []error
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.DequeueNext(ctx)
				if err != nil {
					mu.Lock()
					errors = append(errors, err)
					mu.Unlock()
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errors)
	assert.Len(t, seen, 6)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

func TestQueueStorage_FailJobRetriesThenFails(t *testing.T) {
	q, db, clock := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "MSFT", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)

	analyses := NewAnalysisStorage(db, arbor.NewLogger())
	wantDelays := []time.Duration{time.Minute, 5 * time.Minute, 25 * time.Minute}
	for attempt, delay := range wantDelays {
		claimed, err := q.DequeueNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed, "attempt %d", attempt)

		failed, err := q.FailJob(ctx, job.ID, "provider timeout", powerOfFiveBackoff)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, failed.Status)
		assert.Equal(t, attempt+1, failed.RetryCount)
		assert.True(t, clock.Now().Add(delay).Equal(failed.ScheduledAt))

		pending, err := analyses.GetAnalysis(ctx, "MSFT")
		require.NoError(t, err)
		assert.Equal(t, models.AnalysisStatusPending, pending.Status)

		// Not eligible until the backoff elapses
		next, err := q.DequeueNext(ctx)
		require.NoError(t, err)
		assert.Nil(t, next)

		clock.Advance(delay)
	}

	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)
	final, err := q.FailJob(ctx, job.ID, "provider timeout", powerOfFiveBackoff)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Equal(t, 3, final.RetryCount)
	assert.NotNil(t, final.CompletedAt)

	analysis, err := analyses.GetAnalysis(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusFailed, analysis.Status)
	assert.Equal(t, "provider timeout", analysis.ErrorMessage)
}

func TestQueueStorage_FailJobLeavesCancelledJob(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "TSLA", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)
	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)

	n, err := q.CancelTickerJobs(ctx, "tsla")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := q.FailJob(ctx, job.ID, "late failure", powerOfFiveBackoff)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

func TestQueueStorage_UpdateProgress(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "AMD", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)

	err = q.UpdateProgress(ctx, job.ID, models.JobProgress{Phase: "fetching_data"})
	assert.ErrorIs(t, err, interfaces.ErrJobNotActive)

	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)
	require.NoError(t, q.UpdateStatus(ctx, job.ID, models.JobStatusProcessing, "stale warning"))
	require.NoError(t, q.UpdateProgress(ctx, job.ID, models.JobProgress{Phase: "fetching_data", Substep: "data_fetch", Progress: "1/3"}))

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "fetching_data", got.Progress.Phase)
	assert.Equal(t, "1/3", got.Progress.Progress)
	assert.False(t, got.Progress.Timestamp.IsZero())
	assert.Empty(t, got.LastError)

	assert.ErrorIs(t, q.UpdateProgress(ctx, "missing", models.JobProgress{}), interfaces.ErrJobNotFound)
}

func TestQueueStorage_ResetStuckJobs(t *testing.T) {
	q, db, clock := newTestQueue(t)
	ctx := context.Background()
	analyses := NewAnalysisStorage(db, arbor.NewLogger())

	stuck, err := q.Enqueue(ctx, "OLD", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)
	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)
	require.NoError(t, analyses.SetStatus(ctx, "OLD", models.AnalysisStatusAnalyzing, ""))

	clock.Advance(20 * time.Minute)
	fresh, err := q.Enqueue(ctx, "NEW", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)
	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	n, err := q.ResetStuckJobs(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := q.GetJob(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)

	analysis, err := analyses.GetAnalysis(ctx, "OLD")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending, analysis.Status)

	stillRunning, err := q.GetJob(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, stillRunning.Status)

	again, err := q.DequeueNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, stuck.ID, again.ID)
}

func TestQueueStorage_CancelTickerJobsSettlesAnalysis(t *testing.T) {
	tests := []struct {
		name       string
		prior      *scorecard.Scorecard
		wantStatus models.AnalysisStatus
		wantError  string
	}{
		{"no previous verdict", nil, models.AnalysisStatusFailed, "cancelled"},
		{"previous verdict restored", &scorecard.Scorecard{GlobalScore: 64}, models.AnalysisStatusCompleted, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, db, _ := newTestQueue(t)
			ctx := context.Background()
			analyses := NewAnalysisStorage(db, arbor.NewLogger())

			if tt.prior != nil {
				require.NoError(t, analyses.SaveAnalysis(ctx, &models.StockAnalysis{
					Ticker:    "NVDA",
					Status:    models.AnalysisStatusCompleted,
					Scorecard: tt.prior,
				}))
			}

			_, err := q.Enqueue(ctx, "NVDA", models.SourceManual, models.PriorityNormal, false)
			require.NoError(t, err)
			_, err = q.DequeueNext(ctx)
			require.NoError(t, err)
			require.NoError(t, analyses.SetStatus(ctx, "NVDA", models.AnalysisStatusAnalyzing, ""))

			n, err := q.CancelTickerJobs(ctx, "nvda")
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			got, err := analyses.GetAnalysis(ctx, "NVDA")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantError, got.ErrorMessage)
		})
	}
}

func TestQueueStorage_CancelTickerJobsWithoutActiveJob(t *testing.T) {
	q, db, _ := newTestQueue(t)
	ctx := context.Background()
	analyses := NewAnalysisStorage(db, arbor.NewLogger())

	require.NoError(t, analyses.SaveAnalysis(ctx, &models.StockAnalysis{Ticker: "AMZN", Status: models.AnalysisStatusCompleted}))

	n, err := q.CancelTickerJobs(ctx, "AMZN")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := analyses.GetAnalysis(ctx, "AMZN")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted, got.Status)
}

func TestQueueStorage_CompleteJob(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "ORCL", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)
	assert.ErrorIs(t, q.CompleteJob(ctx, job.ID), interfaces.ErrJobNotActive)

	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)
	require.NoError(t, q.CompleteJob(ctx, job.ID))

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	assert.ErrorIs(t, q.CompleteJob(ctx, "missing"), interfaces.ErrJobNotFound)
}

func TestQueueStorage_CompleteJobLeavesCancelledJob(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "INTC", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)
	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)
	_, err = q.CancelTickerJobs(ctx, "INTC")
	require.NoError(t, err)

	assert.ErrorIs(t, q.CompleteJob(ctx, job.ID), interfaces.ErrJobNotActive)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
}

func TestQueueStorage_SettleCancelled(t *testing.T) {
	q, db, _ := newTestQueue(t)
	ctx := context.Background()
	analyses := NewAnalysisStorage(db, arbor.NewLogger())

	first, err := q.Enqueue(ctx, "META", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)
	assert.ErrorIs(t, q.SettleCancelled(ctx, first.ID), interfaces.ErrJobNotActive)

	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)

	// A forced re-enqueue supersedes the running job, which then keeps writing
	_, err = q.Enqueue(ctx, "META", models.SourceManual, models.PriorityHigh, true)
	require.NoError(t, err)
	require.NoError(t, analyses.SetStatus(ctx, "META", models.AnalysisStatusAnalyzing, ""))

	require.NoError(t, q.SettleCancelled(ctx, first.ID))
	got, err := analyses.GetAnalysis(ctx, "META")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending, got.Status)

	// Once the replacement is processing it owns the analysis
	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)
	require.NoError(t, analyses.SetStatus(ctx, "META", models.AnalysisStatusAnalyzing, ""))
	require.NoError(t, q.SettleCancelled(ctx, first.ID))
	got, err = analyses.GetAnalysis(ctx, "META")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusAnalyzing, got.Status)
}

func TestQueueStorage_ReleaseJob(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "IBM", models.SourceManual, models.PriorityNormal, false)
	require.NoError(t, err)
	_, err = q.DequeueNext(ctx)
	require.NoError(t, err)

	require.NoError(t, q.ReleaseJob(ctx, job.ID))
	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)

	assert.ErrorIs(t, q.ReleaseJob(ctx, job.ID), interfaces.ErrJobNotActive)
}

func TestQueueStorage_ListJobs(t *testing.T) {
	q, _, clock := newTestQueue(t)
	ctx := context.Background()

	for _, ticker := range []string{"A", "B", "C"} {
		_, err := q.Enqueue(ctx, ticker, models.SourceManual, models.PriorityNormal, false)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	_, err := q.DequeueNext(ctx)
	require.NoError(t, err)

	all, err := q.ListJobs(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].Ticker)

	pending, err := q.ListJobs(ctx, models.JobStatusPending, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "C", pending[0].Ticker)
}

package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestRegisterJobValidatesSchedule(t *testing.T) {
	s := NewService(arbor.NewLogger())

	require.NoError(t, s.RegisterJob("refresh", "0 6 * * 1-5", "weekday refresh", func() error { return nil }))
	assert.Error(t, s.RegisterJob("refresh", "0 6 * * 1-5", "duplicate", func() error { return nil }))
	assert.Error(t, s.RegisterJob("fast", "* * * * *", "too often", func() error { return nil }))
	assert.Error(t, s.RegisterJob("bad", "not a cron", "invalid", func() error { return nil }))
}

func TestEnableDisableJob(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("refresh", "0 6 * * 1-5", "weekday refresh", func() error { return nil }))
	require.NoError(t, s.Start())
	defer s.Stop()

	status, err := s.GetJobStatus("refresh")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.NotNil(t, status.NextRun)

	require.NoError(t, s.DisableJob("refresh"))
	status, err = s.GetJobStatus("refresh")
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.Nil(t, status.NextRun)

	require.NoError(t, s.EnableJob("refresh"))
	assert.Error(t, s.EnableJob("missing"))
	assert.Error(t, s.DisableJob("missing"))
	_, err = s.GetJobStatus("missing")
	assert.Error(t, err)
}

func TestTriggerJobRecordsOutcome(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("failing", "0 6 * * *", "", func() error { return errors.New("upstream down") }))
	require.NoError(t, s.RegisterJob("panicking", "0 7 * * *", "", func() error { panic("boom") }))

	require.NoError(t, s.TriggerJob("failing"))
	require.NoError(t, s.TriggerJob("panicking"))
	assert.Error(t, s.TriggerJob("missing"))
	s.wg.Wait()

	statuses := s.GetAllJobStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "upstream down", statuses["failing"].LastError)
	assert.NotNil(t, statuses["failing"].LastRun)
	assert.Contains(t, statuses["panicking"].LastError, "boom")
	assert.False(t, statuses["panicking"].IsRunning)
}

func TestExecuteJobSkipsOverlappingRuns(t *testing.T) {
	s := NewService(arbor.NewLogger())
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var runs, other atomic.Int32

	require.NoError(t, s.RegisterJob("slow", "0 6 * * *", "", func() error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}))
	require.NoError(t, s.RegisterJob("other", "0 7 * * *", "", func() error {
		other.Add(1)
		return nil
	}))

	done := make(chan struct{})
	go func() {
		s.executeJob("slow")
		close(done)
	}()
	<-started

	s.executeJob("slow")
	s.executeJob("other")
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("slow job did not finish")
	}
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int32(1), other.Load())
}

func TestStartStop(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop())
}

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsJobs(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Stop()

	var ran atomic.Int32
	results := make([]chan error, 5)
	for i := range results {
		results[i] = make(chan error, 1)
		require.NoError(t, pool.Submit(Job{
			ID: "job",
			Handler: func(context.Context) error {
				ran.Add(1)
				return nil
			},
			Result: results[i],
		}))
	}
	for _, r := range results {
		assert.NoError(t, <-r)
	}
	assert.Equal(t, int32(5), ran.Load())
}

func TestWorkerPoolReportsErrors(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	result := make(chan error, 1)
	boom := errors.New("boom")
	require.NoError(t, pool.Submit(Job{ID: "bad", Handler: func(context.Context) error { return boom }, Result: result}))
	assert.ErrorIs(t, <-result, boom)
}

func TestWorkerPoolStop(t *testing.T) {
	pool := NewWorkerPool(0)
	pool.Start()
	pool.Stop()
	pool.Stop()

	err := pool.Submit(Job{ID: "late", Handler: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(NewWorkerPool(1))
	err := s.AddTask("sync", "every now and then", func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.Empty(t, s.Tasks())

	require.NoError(t, s.AddTask("sync", "@every 1h", func(context.Context) error { return nil }))
	assert.Error(t, s.AddTask("sync", "@daily", func(context.Context) error { return nil }))
}

func TestSchedulerRunNow(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	s := NewScheduler(pool)
	done := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.AddTask("sync", "0 3 * * *", func(context.Context) error {
		<-release
		close(done)
		return nil
	}))

	assert.ErrorIs(t, s.RunNow("missing"), ErrTaskNotFound)
	require.NoError(t, s.RunNow("sync"))
	assert.ErrorIs(t, s.RunNow("sync"), ErrTaskRunning, "a task never overlaps with itself")

	close(release)
	<-done
	require.Eventually(t, func() bool {
		return s.Tasks()[0].Status == StatusCompleted
	}, time.Second, 10*time.Millisecond)
	assert.NotNil(t, s.Tasks()[0].LastRun)
}

func TestSchedulerRecordsFailure(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	s := NewScheduler(pool)
	require.NoError(t, s.AddTask("sync", "@hourly", func(context.Context) error {
		return errors.New("device unreachable")
	}))
	require.NoError(t, s.RunNow("sync"))
	require.Eventually(t, func() bool {
		return s.Tasks()[0].Status == StatusFailed
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "device unreachable", s.Tasks()[0].LastErr)
}

func TestSchedulerStartStop(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	s := NewScheduler(pool)
	require.NoError(t, s.AddTask("sync", "@every 1h", func(context.Context) error { return nil }))
	s.Start()
	s.Start()
	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].NextRun.After(time.Now()))
	s.Stop()
	s.Stop()
}

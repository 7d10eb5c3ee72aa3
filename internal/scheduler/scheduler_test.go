package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

type testJob struct {
	name     string
	schedule string
	err      error

	mu    sync.Mutex
	calls int
	block chan struct{}
}

func (j *testJob) Name() string     { return j.name }
func (j *testJob) Schedule() string { return j.schedule }

func (j *testJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func (j *testJob) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func TestScheduler_AddAndRemove(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.AddJob(&testJob{name: "b", schedule: "0 0 6 * * 1-5"}))
	require.NoError(t, s.AddJob(&testJob{name: "a", schedule: "@daily"}))
	assert.Error(t, s.AddJob(&testJob{name: "a", schedule: "@daily"}))
	assert.Error(t, s.AddJob(&testJob{name: "c", schedule: "every day"}))

	assert.Equal(t, []string{"a", "b"}, s.JobNames())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.JobNames())
}

func TestScheduler_RunNowRecordsHistory(t *testing.T) {
	s := New(logger.NewNop())
	ok := &testJob{name: "ok", schedule: "@daily"}
	bad := &testJob{name: "bad", schedule: "@daily", err: errors.New("boom")}
	require.NoError(t, s.AddJob(ok))
	require.NoError(t, s.AddJob(bad))

	require.NoError(t, s.RunNow(context.Background(), "ok"))
	require.NoError(t, s.RunNow(context.Background(), "ok"))
	err := s.RunNow(context.Background(), "bad")
	assert.ErrorContains(t, err, "boom")
	assert.Error(t, s.RunNow(context.Background(), "missing"))

	// one attempt per trigger
	assert.Equal(t, 1, bad.Calls())

	stats := s.Stats()
	require.Len(t, stats, 2)

	assert.Equal(t, "bad", stats[0].JobName)
	assert.Equal(t, 1, stats[0].FailureCount)
	assert.Equal(t, "boom", stats[0].LastError)
	assert.NotNil(t, stats[0].LastFailure)
	assert.Nil(t, stats[0].LastSuccess)

	assert.Equal(t, "ok", stats[1].JobName)
	assert.Equal(t, 2, stats[1].TotalRuns)
	assert.Equal(t, 2, stats[1].SuccessCount)
	assert.InDelta(t, 1.0, stats[1].SuccessRate, 1e-9)

	history, err := s.History("ok")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestScheduler_RefusesConcurrentRun(t *testing.T) {
	s := New(logger.NewNop())
	job := &testJob{name: "slow", schedule: "@daily", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()

	require.Eventually(t, func() bool { return job.Calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorContains(t, s.RunNow(context.Background(), "slow"), "already running")

	close(job.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, job.Calls())
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := New(logger.NewNop())
	job := &testJob{name: "slow", schedule: "@daily", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))
	s.Start()

	done := make(chan error, 1)
	go func() { done <- s.RunNow(s.ctx, "slow") }()
	require.Eventually(t, func() bool { return job.Calls() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestJobHistory_KeepsLastHundred(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%4 != 0, StartTime: time.Unix(int64(i), 0)})
	}
	assert.Len(t, h.Results, historyLimit)

	last, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, time.Unix(119, 0), last.StartTime)
	assert.Equal(t, 25, h.Failures())
	assert.InDelta(t, 0.75, h.SuccessRate(), 1e-9)
}

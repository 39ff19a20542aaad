package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestRunJobNowUpdatesStats(t *testing.T) {
	s := newTestScheduler(t)

	var calls atomic.Int32
	require.NoError(t, s.AddSingletonJob("ok", "OK", "always succeeds", "1h",
		gocron.DurationJob(time.Hour), func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}, false))

	s.Start()
	require.NoError(t, s.RunJobNow("ok"))

	assert.Eventually(t, func() bool {
		info, ok := s.GetJob("ok")
		return ok && info.Status == JobStatusCompleted && info.RunCount == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFailedJobRecordsError(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddJob("fail", "Fail", "always fails", "1h",
		gocron.DurationJob(time.Hour), func(ctx context.Context) error {
			return errors.New("boom")
		}, true))

	s.Start()

	assert.Eventually(t, func() bool {
		info, _ := s.GetJob("fail")
		return info.Status == JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	info, _ := s.GetJob("fail")
	assert.Equal(t, 1, info.ErrorCount)
	assert.Equal(t, "boom", info.LastError)
}

func TestDisabledJobIsSkipped(t *testing.T) {
	s := newTestScheduler(t)

	var calls atomic.Int32
	require.NoError(t, s.AddJob("off", "Off", "", "1h",
		gocron.DurationJob(time.Hour), func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}, false))
	require.NoError(t, s.DisableJob("off"))

	s.Start()
	require.NoError(t, s.RunJobNow("off"))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(0), calls.Load())
	info, _ := s.GetJob("off")
	assert.False(t, info.Enabled)
	assert.Equal(t, 0, info.RunCount)
}

func TestUnknownAndDuplicateJobs(t *testing.T) {
	s := newTestScheduler(t)

	assert.ErrorIs(t, s.RunJobNow("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.EnableJob("missing"), ErrJobNotFound)

	noop := func(ctx context.Context) error { return nil }
	require.NoError(t, s.AddJob("b", "B", "", "1h", gocron.DurationJob(time.Hour), noop, false))
	require.NoError(t, s.AddJob("a", "A", "", "1h", gocron.DurationJob(time.Hour), noop, false))
	assert.Error(t, s.AddJob("a", "A", "", "1h", gocron.DurationJob(time.Hour), noop, false))

	jobs := s.GetJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}

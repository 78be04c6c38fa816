package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "alertbot/pkg/logx"
)

func TestAddCronValidatesSpec(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())

	require.Error(t, s.AddCron("bad", "every day", 0, func(context.Context) error { return nil }))
	require.Error(t, s.AddCron("", "@daily", 0, func(context.Context) error { return nil }))
	require.NoError(t, s.AddCron("ok", "@daily", 0, func(context.Context) error { return nil }))
	require.NoError(t, s.AddCron("seconds", "*/30 * * * * *", 0, func(context.Context) error { return nil }))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "ok", snap[0].Name)
	require.Equal(t, "seconds", snap[1].Name)
}

func TestRunNowRecordsOutcome(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())

	boom := errors.New("boom")
	calls := 0
	require.NoError(t, s.AddCron("compact", "@daily", time.Second, func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		if calls == 2 {
			return boom
		}
		return nil
	}))

	require.NoError(t, s.RunNow(context.Background(), "compact"))
	require.ErrorIs(t, s.RunNow(context.Background(), "compact"), boom)
	require.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrUnknownJob)

	e := s.Snapshot()[0]
	require.EqualValues(t, 2, e.Runs)
	require.EqualValues(t, 1, e.Failures)
	require.Equal(t, "boom", e.LastErr)
	require.False(t, e.LastRun.IsZero())
}

func TestRunNowRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	require.NoError(t, s.AddCron("p", "@daily", 0, func(context.Context) error { panic("nope") }))

	require.ErrorContains(t, s.RunNow(context.Background(), "p"), "panic")
	require.EqualValues(t, 1, s.Snapshot()[0].Failures)
}

func TestNoOverlap(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.AddCron("slow", "@daily", 0, func(context.Context) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	require.ErrorContains(t, s.RunNow(context.Background(), "slow"), "already running")
	close(release)
	require.NoError(t, <-done)
	require.EqualValues(t, 1, s.Snapshot()[0].Skipped)
}

func TestStartTriggersAndStopCancels(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, logx.Nop())

	var runs atomic.Int32
	require.NoError(t, s.AddCron("tick", "@every 1s", 0, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	require.False(t, s.Snapshot()[0].Next.IsZero())

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	require.True(t, s.Snapshot()[0].Next.IsZero())
	require.True(t, s.Remove("tick"))
	require.False(t, s.Remove("tick"))
}

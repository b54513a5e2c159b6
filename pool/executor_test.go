package pool

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitAndAwait_RunsAllTasksAndIsReusable(t *testing.T) {
	e := NewFixedActiveThreadsExecutor("test", 4)
	defer e.Shutdown()

	for round := 0; round < 3; round++ {
		var ran [4]bool
		tasks := make([]Task, 4)
		for i := 0; i < 4; i++ {
			i := i
			tasks[i] = func() error {
				ran[i] = true
				return nil
			}
		}
		errs, err := e.SubmitAndAwait(tasks, time.Second)
		require.NoError(t, err)
		require.Len(t, errs, 4)
		for i, e := range errs {
			require.NoError(t, e)
			require.True(t, ran[i])
		}
	}
}

func TestSubmitAndAwait_PropagatesTaskErrors(t *testing.T) {
	e := NewFixedActiveThreadsExecutor("test", 2)
	defer e.Shutdown()

	boom := errors.New("boom")
	errs, err := e.SubmitAndAwait([]Task{
		func() error { return nil },
		func() error { return boom },
	}, time.Second)
	require.NoError(t, err)
	require.NoError(t, errs[0])
	require.ErrorIs(t, errs[1], boom)
}

func TestSubmitAndAwait_WrongTaskCount(t *testing.T) {
	e := NewFixedActiveThreadsExecutor("test", 3)
	defer e.Shutdown()

	_, err := e.SubmitAndAwait([]Task{func() error { return nil }}, time.Second)
	require.Error(t, err)
}

func TestSubmitAndAwait_TimesOutOnStuckWorker(t *testing.T) {
	e := NewFixedActiveThreadsExecutor("test", 2)
	defer e.Shutdown()

	release := make(chan struct{})
	_, err := e.SubmitAndAwait([]Task{
		func() error { return nil },
		func() error { <-release; return nil },
	}, 20*time.Millisecond)
	require.Error(t, err)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	close(release)
}

func TestSubmitAndAwait_RecoversPanickingTask(t *testing.T) {
	e := NewFixedActiveThreadsExecutor("test", 1)
	defer e.Shutdown()

	errs, err := e.SubmitAndAwait([]Task{
		func() error { panic("kaboom") },
	}, time.Second)
	require.NoError(t, err)
	require.Error(t, errs[0])
}

func TestShutdown_RejectsFurtherRounds(t *testing.T) {
	e := NewFixedActiveThreadsExecutor("test", 1)
	e.Shutdown()

	_, err := e.SubmitAndAwait([]Task{func() error { return nil }}, time.Second)
	require.ErrorIs(t, err, ErrShutdown)
}

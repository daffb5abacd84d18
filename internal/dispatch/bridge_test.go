package dispatch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtlprog/worklog/internal/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_RunsJob(t *testing.T) {
	b := dispatch.New(2, 8, time.Second)

	done := make(chan struct{})
	ok := b.Schedule("notify", func(context.Context) error {
		close(done)
		return nil
	})
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	require.NoError(t, b.Shutdown(context.Background()))
}

func TestSchedule_DoesNotBlockWhenFull(t *testing.T) {
	b := dispatch.New(1, 1, time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, b.Schedule("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.True(t, b.Schedule("queued", func(context.Context) error { return nil }))

	begin := time.Now()
	ok := b.Schedule("overflow", func(context.Context) error { return nil })
	assert.False(t, ok)
	assert.Less(t, time.Since(begin), 100*time.Millisecond)

	close(release)
	require.NoError(t, b.Shutdown(context.Background()))
}

func TestSchedule_FailuresAndPanicsAreContained(t *testing.T) {
	b := dispatch.New(1, 8, time.Second)

	var ran atomic.Int32
	b.Schedule("fails", func(context.Context) error {
		ran.Add(1)
		return errors.New("smtp down")
	})
	b.Schedule("panics", func(context.Context) error {
		ran.Add(1)
		panic("boom")
	})
	b.Schedule("after", func(context.Context) error {
		ran.Add(1)
		return nil
	})

	require.NoError(t, b.Shutdown(context.Background()))
	assert.Equal(t, int32(3), ran.Load())
}

func TestSchedule_JobTimeout(t *testing.T) {
	b := dispatch.New(1, 1, 20*time.Millisecond)

	errc := make(chan error, 1)
	b.Schedule("slow", func(ctx context.Context) error {
		<-ctx.Done()
		errc <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job context was not cancelled")
	}
	require.NoError(t, b.Shutdown(context.Background()))
}

func TestShutdown_RejectsNewJobs(t *testing.T) {
	b := dispatch.New(1, 1, time.Second)
	require.NoError(t, b.Shutdown(context.Background()))
	require.NoError(t, b.Shutdown(context.Background()))

	assert.False(t, b.Schedule("late", func(context.Context) error { return nil }))
}

func TestShutdown_Deadline(t *testing.T) {
	b := dispatch.New(1, 1, time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	b.Schedule("stuck", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

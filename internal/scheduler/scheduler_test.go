package scheduler

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRunsEveryTask(t *testing.T) {
	s := New(4, nil)

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, s.Schedule(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	s.Close()

	assert.Equal(t, int64(100), count.Load())
	stats := s.Stats()
	assert.Equal(t, 4, stats.Workers)
	assert.Equal(t, uint64(100), stats.Scheduled)
	assert.Equal(t, uint64(100), stats.Completed)
}

func TestScheduleFuncCallback(t *testing.T) {
	s := New(2, nil)
	defer s.Close()

	boom := errors.New("boom")
	got := make(chan error, 1)
	require.NoError(t, s.ScheduleFunc(func() error { return boom }, func(err error) { got <- err }))

	select {
	case err := <-got:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not invoked")
	}
}

func TestPanicIsReportedToCallback(t *testing.T) {
	s := New(1, nil)
	defer s.Close()

	got := make(chan error, 1)
	require.NoError(t, s.ScheduleFunc(func() error { panic("kaboom") }, func(err error) { got <- err }))

	err := <-got
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// The worker survives the panic.
	done := make(chan struct{})
	require.NoError(t, s.Schedule(func() { close(done) }))
	<-done
	assert.Equal(t, uint64(1), s.Stats().Panics)
}

func TestWorkersRunConcurrently(t *testing.T) {
	const n = 3
	s := New(n, nil)
	defer s.Close()

	// Each task waits until all of them have started, which only completes
	// when n workers run at the same time.
	var started sync.WaitGroup
	started.Add(n)
	release := make(chan struct{})
	g := s.NewGroup()
	for i := 0; i < n; i++ {
		require.NoError(t, g.Go(func() error {
			started.Done()
			<-release
			return nil
		}))
	}

	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()
	select {
	case <-allStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not run concurrently")
	}
	close(release)
	assert.Empty(t, g.Wait())
}

func TestCloseDrainsQueuedWork(t *testing.T) {
	s := New(1, nil)

	gate := make(chan struct{})
	var ran atomic.Int64
	require.NoError(t, s.Schedule(func() {
		<-gate
		ran.Add(1)
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Schedule(func() { ran.Add(1) }))
	}
	// The dispatcher holds one task while it waits for the busy worker.
	assert.Eventually(t, func() bool { return s.Pending() == 9 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	// Close must wait for the blocked task.
	select {
	case <-closed:
		t.Fatal("Close returned while a task was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(gate)
	<-closed

	assert.Equal(t, int64(11), ran.Load())
	assert.Zero(t, s.Pending())
	assert.ErrorIs(t, s.Schedule(func() {}), ErrClosed)
	s.Close()
}

func TestGroupCollectsErrors(t *testing.T) {
	s := New(4, nil)
	defer s.Close()

	g := s.NewGroup()
	for i := 0; i < 8; i++ {
		i := i
		require.NoError(t, g.Go(func() error {
			if i%2 == 0 {
				return errors.New("even")
			}
			return nil
		}))
	}
	assert.Len(t, g.Wait(), 4)
}

func TestGroupGoAfterClose(t *testing.T) {
	s := New(1, nil)
	s.Close()

	g := s.NewGroup()
	assert.ErrorIs(t, g.Go(func() error { return nil }), ErrClosed)
	assert.Empty(t, g.Wait())
}

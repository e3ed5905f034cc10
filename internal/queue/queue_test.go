package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byteLen(b []byte) int64 { return int64(len(b)) }

func TestFIFOOrder(t *testing.T) {
	q := New[int](0, nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Put(i, 0))
	}
	q.Close()

	for i := 0; i < 5; i++ {
		v, err := q.Get()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	_, err := q.Get()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReserveBlocksUntilRoom(t *testing.T) {
	q := New[[]byte](10, byteLen)

	require.NoError(t, q.Reserve(6))
	require.NoError(t, q.Put(make([]byte, 6), 6))

	reserved := make(chan error, 1)
	go func() { reserved <- q.Reserve(6) }()

	select {
	case <-reserved:
		t.Fatal("Reserve should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := q.Get()
	require.NoError(t, err)

	select {
	case err := <-reserved:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Reserve was not woken after Get freed room")
	}
}

func TestOversizedItemAdmittedWhenEmpty(t *testing.T) {
	q := New[[]byte](4, byteLen)
	require.NoError(t, q.Reserve(16))
	require.NoError(t, q.Put(make([]byte, 16), 16))
	assert.Equal(t, int64(16), q.Bytes())
	assert.Equal(t, int64(16), q.Peak())
}

func TestReleaseWakesReserve(t *testing.T) {
	q := New[[]byte](8, byteLen)
	require.NoError(t, q.Reserve(8))

	reserved := make(chan error, 1)
	go func() { reserved <- q.Reserve(4) }()
	time.Sleep(20 * time.Millisecond)
	q.Release(8)

	select {
	case err := <-reserved:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Release did not wake the waiting producer")
	}
}

func TestAbortWakesEveryone(t *testing.T) {
	q := New[[]byte](4, byteLen)
	require.NoError(t, q.Reserve(4))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- q.Reserve(4)
	}()
	go func() {
		defer wg.Done()
		_, err := q.Get()
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	q.Abort()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrAborted)
	}
	assert.ErrorIs(t, q.Put([]byte{1}, 0), ErrAborted)
}

func TestCloseDrainsBeforeErrClosed(t *testing.T) {
	q := New[[]byte](0, byteLen)
	require.NoError(t, q.Put([]byte("a"), 0))
	q.Close()

	assert.ErrorIs(t, q.Put([]byte("b"), 0), ErrClosed)
	assert.ErrorIs(t, q.Reserve(1), ErrClosed)

	v, err := q.Get()
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), v)

	_, err = q.Get()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBoundedUnderConcurrentProducers(t *testing.T) {
	const limit = 64
	q := New[[]byte](limit, byteLen)

	var producers sync.WaitGroup
	for p := 0; p < 8; p++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for i := 0; i < 50; i++ {
				if err := q.Reserve(16); err != nil {
					return
				}
				if err := q.Put(make([]byte, 16), 16); err != nil {
					return
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		producers.Wait()
		q.Close()
		close(done)
	}()

	count := 0
	for {
		_, err := q.Get()
		if err != nil {
			assert.ErrorIs(t, err, ErrClosed)
			break
		}
		count++
	}
	<-done

	assert.Equal(t, 400, count)
	assert.LessOrEqual(t, q.Peak(), int64(limit))
	assert.Equal(t, 0, q.Len())
}

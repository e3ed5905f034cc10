// Package queue implements a FIFO whose capacity is measured in bytes rather
// than items.
//
// Producers reserve room before they produce an item, so the number of bytes
// queued plus bytes promised never exceeds the limit (except for a single
// oversized item admitted into an empty queue). Consumers block until an item
// arrives, the queue is closed and drained, or the queue is aborted. All
// waits are on a condition variable signaled by the state change that ends
// them, never by polling.
package queue

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned by Get once the queue is closed and empty, and by
	// Reserve and Put after Close.
	ErrClosed = errors.New("queue: closed")
	// ErrAborted is returned by every blocking operation after Abort.
	ErrAborted = errors.New("queue: aborted")
)

// Queue is a byte-bounded blocking FIFO. A zero limit means unbounded.
type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []T
	size     func(T) int64
	limit    int64
	queued   int64
	reserved int64
	peak     int64
	closed   bool
	aborted  bool
}

// New creates a queue holding at most limit bytes, where size reports the
// byte weight of an item.
func New[T any](limit int64, size func(T) int64) *Queue[T] {
	if size == nil {
		size = func(T) int64 { return 1 }
	}
	q := &Queue[T]{size: size, limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Reserve blocks until n bytes fit under the limit. An empty queue with no
// outstanding reservations always admits the request so that an item larger
// than the limit cannot deadlock the producer.
func (q *Queue[T]) Reserve(n int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.aborted && !q.closed && q.limit > 0 &&
		q.queued+q.reserved > 0 && q.queued+q.reserved+n > q.limit {
		q.cond.Wait()
	}
	if q.aborted {
		return ErrAborted
	}
	if q.closed {
		return ErrClosed
	}
	q.reserved += n
	return nil
}

// Release returns an unused reservation.
func (q *Queue[T]) Release(n int64) {
	q.mu.Lock()
	q.reserved -= n
	if q.reserved < 0 {
		q.reserved = 0
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Put appends item, converting a prior reservation of reserved bytes into the
// item's actual size.
func (q *Queue[T]) Put(item T, reserved int64) error {
	n := q.size(item)

	q.mu.Lock()
	q.reserved -= reserved
	if q.reserved < 0 {
		q.reserved = 0
	}
	if q.aborted {
		q.mu.Unlock()
		return ErrAborted
	}
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.queued += n
	if q.queued > q.peak {
		q.peak = q.queued
	}
	q.mu.Unlock()

	q.cond.Broadcast()
	return nil
}

// Get removes the oldest item, blocking until one is available.
func (q *Queue[T]) Get() (T, error) {
	var zero T

	q.mu.Lock()
	for len(q.items) == 0 && !q.closed && !q.aborted {
		q.cond.Wait()
	}
	if q.aborted {
		q.mu.Unlock()
		return zero, ErrAborted
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return zero, ErrClosed
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.queued -= q.size(item)
	q.mu.Unlock()

	// Room was freed: wake producers waiting in Reserve.
	q.cond.Broadcast()
	return item, nil
}

// Close marks the end of input. Consumers drain the remaining items and then
// receive ErrClosed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Abort wakes every waiter and makes all further operations fail with
// ErrAborted. Queued items are dropped.
func (q *Queue[T]) Abort() {
	q.mu.Lock()
	q.aborted = true
	q.items = nil
	q.queued = 0
	q.reserved = 0
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Bytes returns the number of bytes currently queued.
func (q *Queue[T]) Bytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queued
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Peak returns the largest number of bytes ever queued at once.
func (q *Queue[T]) Peak() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.peak
}

// Package scheduler provides a fixed-size pool of long-lived workers fed from
// a shared FIFO of pending tasks.
//
// Every worker sleeps on its own channel until a dispatcher goroutine hands it
// a task. The dispatcher pairs the oldest pending task with the next free
// worker. No ordering is guaranteed between tasks once they start running.
package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// ErrClosed is returned when scheduling on a scheduler that has been closed.
var ErrClosed = errors.New("scheduler: closed")

// Stats holds counters for a Scheduler.
type Stats struct {
	Workers   int
	Scheduled uint64
	Completed uint64
	Panics    uint64
}

// String provides a string representation of the scheduler stats.
func (s Stats) String() string {
	return fmt.Sprintf("workers=%d scheduled=%d completed=%d panics=%d",
		s.Workers, s.Scheduled, s.Completed, s.Panics)
}

type worker struct {
	id   int
	work chan func()
}

// Scheduler runs tasks on a fixed number of workers.
type Scheduler struct {
	logger log.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool

	workers      []*worker
	free         chan *worker
	wg           sync.WaitGroup
	dispatchDone chan struct{}
	closeOnce    sync.Once

	scheduled atomic.Uint64
	completed atomic.Uint64
	panics    atomic.Uint64
}

// New starts a scheduler with the given number of workers. A count below one
// is raised to one.
func New(workers int, logger log.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Scheduler{
		logger:       logger,
		workers:      make([]*worker, workers),
		free:         make(chan *worker, workers),
		dispatchDone: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	for i := range s.workers {
		w := &worker{id: i, work: make(chan func())}
		s.workers[i] = w
		s.free <- w
		s.wg.Add(1)
		go s.runWorker(w)
	}
	go s.dispatch()

	return s
}

// Schedule queues a fire-and-forget task.
func (s *Scheduler) Schedule(task func()) error {
	if task == nil {
		return errors.New("scheduler: nil task")
	}
	return s.ScheduleFunc(func() error {
		task()
		return nil
	}, nil)
}

// ScheduleFunc queues a task and, once it has run, invokes callback with the
// task's error on the same worker. A panicking task is reported to the
// callback as an error.
func (s *Scheduler) ScheduleFunc(task func() error, callback func(error)) error {
	if task == nil {
		return errors.New("scheduler: nil task")
	}

	wrapped := func() {
		err := s.safely(task)
		if callback != nil {
			callback(err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.pending = append(s.pending, wrapped)
	s.scheduled.Add(1)
	s.cond.Signal()
	return nil
}

// Pending returns the number of tasks waiting for a free worker.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Workers:   len(s.workers),
		Scheduled: s.scheduled.Load(),
		Completed: s.completed.Load(),
		Panics:    s.panics.Load(),
	}
}

// Close stops accepting new tasks, lets every queued and in-flight task
// finish, and joins all workers. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()

		<-s.dispatchDone

		// Every worker returns to the free list once its task is done.
		for range s.workers {
			w := <-s.free
			close(w.work)
		}
		s.wg.Wait()

		level.Debug(s.logger).Log("msg", "scheduler closed", "stats", s.Stats().String())
	})
}

func (s *Scheduler) dispatch() {
	defer close(s.dispatchDone)
	for {
		task, ok := s.next()
		if !ok {
			return
		}
		w := <-s.free
		w.work <- task
	}
}

// next blocks until a task is pending. It reports false once the scheduler is
// closed and the queue is drained.
func (s *Scheduler) next() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.pending) == 0 {
		return nil, false
	}
	task := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return task, true
}

func (s *Scheduler) runWorker(w *worker) {
	defer s.wg.Done()
	for task := range w.work {
		task()
		s.completed.Add(1)
		s.free <- w
	}
}

func (s *Scheduler) safely(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			err = errors.Errorf("scheduler: task panicked: %v", r)
			level.Error(s.logger).Log("msg", "task panicked", "err", err)
		}
	}()
	return task()
}

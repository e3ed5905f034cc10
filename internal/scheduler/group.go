package scheduler

import "sync"

// Group tracks a set of tasks scheduled together so the caller can join them
// and collect their errors.
type Group struct {
	s    *Scheduler
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// NewGroup returns an empty group bound to the scheduler.
func (s *Scheduler) NewGroup() *Group {
	return &Group{s: s}
}

// Go schedules task as part of the group.
func (g *Group) Go(task func() error) error {
	g.wg.Add(1)
	err := g.s.ScheduleFunc(task, func(err error) {
		if err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
		g.wg.Done()
	})
	if err != nil {
		g.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every task in the group has finished and returns the
// errors they reported, in completion order.
func (g *Group) Wait() []error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]error(nil), g.errs...)
}

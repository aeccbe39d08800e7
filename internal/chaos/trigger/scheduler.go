package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/louisbranch/tremor/internal/chaos/errs"
)

// Scheduler runs delayed tasks that can all be cancelled on shutdown. Each
// task gets its own goroutine; no timer outlives Shutdown.
type Scheduler struct {
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	pending  int
	shutdown bool
}

// NewScheduler builds a scheduler rooted in the given context.
func NewScheduler(ctx context.Context) *Scheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	child, cancel := context.WithCancel(ctx)
	return &Scheduler{ctx: child, cancel: cancel}
}

// After runs fn after the delay unless the scheduler shuts down first.
func (s *Scheduler) After(name string, delay time.Duration, fn func(context.Context)) error {
	if fn == nil {
		return errs.Scheduling(name, errors.New("task function is required"))
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return errs.Scheduling(name, errors.New("scheduler is shut down"))
	}
	s.pending++
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.pending--
			s.mu.Unlock()
		}()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			fn(s.ctx)
		}
	}()
	return nil
}

// Pending counts tasks waiting for their delay or still running.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Shutdown cancels every pending task and waits for their goroutines to
// drain. Safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MinimumSweepInterval bounds how often sweep tasks may run.
const MinimumSweepInterval = time.Second

// SweepFunc removes expired entries and reports how many it removed.
type SweepFunc func(ctx context.Context) (int, error)

// SweepResult is passed to the report callback after every pass of a task.
type SweepResult struct {
	Name    string
	Removed int
	Err     error
}

// Sweeper periodically runs the expiry sweeps of the auth stores.
type Sweeper struct {
	interval time.Duration
	report   func(SweepResult)

	mu      sync.Mutex
	tasks   []sweepTask
	running bool
}

type sweepTask struct {
	name string
	fn   SweepFunc
}

// NewSweeper creates a sweeper. report may be nil.
func NewSweeper(interval time.Duration, report func(SweepResult)) (*Sweeper, error) {
	if interval < MinimumSweepInterval {
		return nil, fmt.Errorf("sweep interval must be at least %v, got %v", MinimumSweepInterval, interval)
	}
	return newSweeperInternal(interval, report), nil
}

// newSweeperInternal skips the minimum check so tests can tick quickly.
func newSweeperInternal(interval time.Duration, report func(SweepResult)) *Sweeper {
	if report == nil {
		report = func(SweepResult) {}
	}
	return &Sweeper{interval: interval, report: report}
}

// Add registers a named task. Tasks added after Run has started are
// picked up on the next tick.
func (s *Sweeper) Add(name string, fn SweepFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, sweepTask{name: name, fn: fn})
}

// Run sweeps on every tick until ctx is cancelled. It blocks; start it in
// a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs every task once, in registration order.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]sweepTask(nil), s.tasks...)
	s.mu.Unlock()

	for _, t := range tasks {
		if ctx.Err() != nil {
			return
		}
		n, err := t.fn(ctx)
		s.report(SweepResult{Name: t.name, Removed: n, Err: err})
	}
}

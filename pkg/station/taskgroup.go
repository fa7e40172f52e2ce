package station

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// TaskGroup runs an arbitrary number of closures concurrently and joins
// them, much like a bspgraph superstep spins up worker goroutines over a
// WaitGroup and drains a single error channel once they've all finished.
// Unlike that single-slot error channel, TaskGroup keeps every sibling's
// error instead of discarding all but the first, since a join in this
// runtime must report every task that failed, not just the earliest one.
type TaskGroup struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs *multierror.Error
}

// NewTaskGroup returns an empty TaskGroup.
func NewTaskGroup() *TaskGroup {
	return &TaskGroup{}
}

// Go runs fn in its own goroutine. Its error, if any, is recorded and
// surfaced by the next Wait call.
func (g *TaskGroup) Go(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(); err != nil {
			g.mu.Lock()
			g.errs = multierror.Append(g.errs, err)
			g.mu.Unlock()
		}
	}()
}

// Wait blocks until every task launched via Go has returned, then returns
// the combined error (nil if every task succeeded).
func (g *TaskGroup) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.errs == nil {
		return nil
	}
	return g.errs.ErrorOrNil()
}

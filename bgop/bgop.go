// Package bgop implements the background operation runner (spec §4.5, C5):
// spawn/wait with one goroutine per spawned worker (no concurrency limit),
// panics converted to errors rather than crashing the caller. Built on golang.org/x/sync/errgroup the way the
// teacher's own fan-out code does, rather than hand-rolling WaitGroup plus
// channel plumbing.
package bgop

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group runs a set of independent worker functions and joins them. Workers
// started concurrently run in parallel when goroutines are available;
// ordering between them is never guaranteed (spec §4.5b).
type Group struct {
	g errgroup.Group
}

// Spawn starts fn as a worker. A panic inside fn is recovered and surfaces
// as the error Wait returns, instead of crashing the process (spec §4.5c).
func (grp *Group) Spawn(fn func() error) {
	grp.g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("bgop: worker panicked: %v", r)
			}
		}()
		return fn()
	})
}

// Wait blocks until every spawned worker has returned, yielding the first
// non-nil error (if any). Safe to call exactly once per Group.
func (grp *Group) Wait() error { return grp.g.Wait() }

// Run executes fns, one per per-server work unit. When there is exactly one
// unit, it runs inline rather than spawning a goroutine (spec §4.5's
// "optimisation": avoids goroutine overhead for the common single-server
// case). Returns the first error encountered, if any.
func Run(fns []func() error) error {
	if len(fns) == 1 {
		return fns[0]()
	}
	var grp Group
	for _, fn := range fns {
		fn := fn
		grp.Spawn(fn)
	}
	return grp.Wait()
}

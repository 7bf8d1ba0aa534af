package pool

import (
	"context"
	"sync"
)

// Group runs a batch of tasks on a Pool and waits for all of them.
// A task that cannot be submitted runs on the caller's goroutine so no
// item of the batch is dropped.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup
}

// NewGroup creates a Group bound to p. A nil pool runs tasks inline.
func NewGroup(p *Pool) *Group {
	return &Group{pool: p}
}

// Go schedules task.
func (g *Group) Go(ctx context.Context, task func(ctx context.Context)) {
	g.wg.Add(1)
	run := func() {
		defer g.wg.Done()
		task(ctx)
	}
	if g.pool == nil {
		run()
		return
	}
	if err := g.pool.Submit(run); err != nil {
		run()
	}
}

// Wait blocks until every scheduled task returns.
func (g *Group) Wait() {
	g.wg.Wait()
}

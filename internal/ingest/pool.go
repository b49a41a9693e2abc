package ingest

import (
	"context"
	"runtime"
	"sync"
)

// Pool runs source-import jobs on a bounded number of goroutines.
// Scheduling blocks while every worker slot is busy, so the number of
// sources being parsed at once never exceeds the configured width.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a pool with the given width. A non-positive width
// means one worker per CPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{sem: make(chan struct{}, workers)}
}

// Go schedules fn on a free worker slot, blocking until one opens.
// The context cancels waiting for a slot; it does not interrupt jobs
// already running.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.sem <- struct{}{}:
	}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Wait blocks until every scheduled job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

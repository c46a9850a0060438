// Package besteffort runs secondary work whose failure must never reach the
// caller's primary outcome. Failures are always logged.
package besteffort

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Result describes how a task ended. Callers may discard it.
type Result struct {
	Task     string
	Err      error
	Duration time.Duration
}

// OK reports whether the task completed without error.
func (r Result) OK() bool { return r.Err == nil }

// Ignore returns a filter that treats errors matching it as success without logging.
type Ignore func(error) bool

// Run executes fn synchronously. Panics are recovered and reported as errors.
func Run(ctx context.Context, task string, fn func(context.Context) error, ignore ...Ignore) (res Result) {
	start := time.Now()
	res.Task = task
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
		res.Duration = time.Since(start)
		if res.Err == nil {
			return
		}
		for _, ig := range ignore {
			if ig(res.Err) {
				slog.Debug("best-effort task skipped", "task", task, "err", res.Err)
				return
			}
		}
		slog.Warn("best-effort task failed", "task", task, "err", res.Err, "duration", res.Duration)
	}()
	res.Err = fn(ctx)
	return res
}

// Group dispatches tasks in the background and lets shutdown wait for them.
type Group struct {
	wg sync.WaitGroup
}

// Go runs fn on its own goroutine with a context detached from ctx's
// cancellation and bounded by timeout. The returned channel yields the Result
// once; it is buffered so nobody has to read it.
func (g *Group) Go(ctx context.Context, task string, timeout time.Duration, fn func(context.Context) error, ignore ...Ignore) <-chan Result {
	out := make(chan Result, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		out <- Run(tctx, task, fn, ignore...)
	}()
	return out
}

// Wait blocks until every dispatched task has finished or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

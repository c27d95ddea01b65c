package report

import (
	"context"
	"log/slog"
	"sync"
)

// Runner executes report jobs on a single background worker. One worker keeps
// segmentation runs strictly sequential so concurrent jobs cannot stack their
// upstream load on the shared rate budget.
type Runner struct {
	tasks chan func(context.Context)
	wg    sync.WaitGroup
	log   *slog.Logger
}

// NewRunner creates a runner with the given queue depth.
func NewRunner(queueSize int) *Runner {
	if queueSize < 1 {
		queueSize = 16
	}
	return &Runner{
		tasks: make(chan func(context.Context), queueSize),
		log:   slog.Default().With("component", "report-runner"),
	}
}

// Start launches the worker. The worker drains queued tasks until ctx is
// cancelled; an in-flight task observes the cancellation through the ctx it
// receives.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-r.tasks:
				task(ctx)
			}
		}
	}()
}

// Submit enqueues a task. Returns false when the queue is full.
func (r *Runner) Submit(task func(context.Context)) bool {
	select {
	case r.tasks <- task:
		return true
	default:
		r.log.Warn("Report queue full, rejecting job")
		return false
	}
}

// Wait blocks until the worker has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner supervises a set of workers. The first worker error cancels
// the rest.
type Runner struct {
	workers []Worker
}

// NewRunner creates a Runner with the given workers.
func NewRunner(workers ...Worker) *Runner {
	return &Runner{workers: workers}
}

// Run starts every worker in parallel and blocks until all of them
// return. If any worker fails, the shared context is cancelled and the
// first error is returned.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.workers {
		slog.Info("worker started", "worker", w.Name())
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	return g.Wait()
}

// tick runs fn once immediately, then on every interval until ctx is
// cancelled.
func tick(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	fn(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			fn(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

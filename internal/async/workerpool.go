package async

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds the parallelism of a batch of independent jobs (file
// reads, chunk extraction, embedding calls) so indexing a large project
// never spawns one goroutine per file.
type WorkerPool struct {
	limit int
}

// NewWorkerPool builds a pool that runs at most limit jobs concurrently.
// A non-positive limit is treated as 1.
func NewWorkerPool(limit int) *WorkerPool {
	if limit < 1 {
		limit = 1
	}
	return &WorkerPool{limit: limit}
}

// Run executes fn(i) for every i in [0, n), bounded to p.limit concurrent
// calls, and returns the first error encountered. A cancellation of ctx,
// or a job returning an error, stops scheduling further jobs; jobs already
// running are allowed to finish.
func (p *WorkerPool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.limit)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			return g.Wait()
		}

		g.Go(func() error {
			defer func() { <-sem }()
			return fn(gctx, i)
		})
	}

	return g.Wait()
}

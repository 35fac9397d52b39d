// Package pipeline runs a batch of independent jobs on a pool of workers and
// delivers the results in the order the inputs were given.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// Run processes inputs with fn on a pool of workers and hands every result to emit
// in input order. emit is called from a single goroutine. A failed job does not
// stop the batch; an emit error or a done ctx does.
func Run[In, Out any](ctx context.Context, cfg Config, inputs []In, fn Func[In, Out], emit func(Result[Out]) error) error {
	if len(inputs) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerCount := WorkerCount(cfg, len(inputs))

	slog.Debug("Pipeline: starting batch",
		"jobs", len(inputs),
		"worker_count", workerCount,
		"buffer_size", cfg.ResultsBufferSize,
	)

	jobs := make(chan Job[In], cfg.ResultsBufferSize)
	results := make(chan Result[Out], cfg.ResultsBufferSize)

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		w := newWorker(i, fn)
		go func() {
			defer wg.Done()
			w.run(runCtx, jobs, results)
		}()
	}

	// Feed jobs
	go func() {
		defer close(jobs)
		for i, in := range inputs {
			select {
			case jobs <- Job[In]{Index: i, Input: in}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	// Close results once every worker has returned
	go func() {
		wg.Wait()
		close(results)
	}()

	orderer := NewOrderer(emit)
	for result := range results {
		if err := orderer.ProcessResult(result); err != nil {
			return fmt.Errorf("failed to emit result %d: %w", orderer.GetNextExpected(), err)
		}
	}

	if orderer.GetNextExpected() < len(inputs) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("pipeline stopped after %d of %d results", orderer.GetNextExpected(), len(inputs))
	}
	return nil
}

// WorkerCount returns the number of workers used for a batch of n jobs
func WorkerCount(cfg Config, n int) int {
	count := cfg.WorkerCount
	if count <= 0 {
		count = int(float64(runtime.NumCPU()) * 0.75) // Use 75% of cores
		if count < 2 {
			count = 2
		}
	}
	if count > n {
		count = n
	}
	return count
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deployer/internal/metrics"
)

// worker processes jobs from a shared channel
type worker[In, Out any] struct {
	id int
	fn Func[In, Out]
}

func newWorker[In, Out any](id int, fn Func[In, Out]) *worker[In, Out] {
	return &worker[In, Out]{id: id, fn: fn}
}

// run processes jobs until the channel is closed or ctx is done
func (w *worker[In, Out]) run(ctx context.Context, jobs <-chan Job[In], results chan<- Result[Out]) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}

			result := w.process(ctx, job)

			select {
			case results <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

// process runs one job. A panicking job fails alone.
func (w *worker[In, Out]) process(ctx context.Context, job Job[In]) (result Result[Out]) {
	start := time.Now()
	result = Result[Out]{Index: job.Index, WorkerID: w.id}

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("job %d panicked: %v", job.Index, r)
		}
		result.ProcessingTime = time.Since(start)

		outcome := "ok"
		if result.Err != nil {
			outcome = "failed"
			slog.Debug("Worker: job failed",
				"worker_id", w.id,
				"index", job.Index,
				"error", result.Err,
			)
		}
		metrics.PipelineJobs.WithLabelValues(outcome).Inc()
	}()

	result.Output, result.Err = w.fn(ctx, job.Input)
	return result
}

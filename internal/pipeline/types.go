package pipeline

import (
	"context"
	"time"
)

// Job is one input of a batch, tagged with its position
type Job[In any] struct {
	Index int
	Input In
}

// Result is the outcome of one job. Err is set when the job failed; the batch
// carries on with the other jobs.
type Result[Out any] struct {
	Index  int
	Output Out
	Err    error

	// Processing metrics
	ProcessingTime time.Duration
	WorkerID       int
}

// Config contains configuration for a pipeline run
type Config struct {
	WorkerCount       int // 0 picks a count from the number of CPU cores
	ResultsBufferSize int
}

// Func processes one input
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

package pipeline

import (
	"log/slog"
)

// Orderer receives results in completion order and emits them in input order.
// Even though workers finish jobs in any order, callers see results the way they
// submitted the inputs.
type Orderer[Out any] struct {
	emit func(Result[Out]) error

	// State tracking
	nextExpected int                 // Next index we expect to emit
	pending      map[int]Result[Out] // Buffered out-of-order results
}

// NewOrderer creates an orderer that hands results to emit starting at index 0
func NewOrderer[Out any](emit func(Result[Out]) error) *Orderer[Out] {
	return &Orderer[Out]{
		emit:    emit,
		pending: make(map[int]Result[Out]),
	}
}

// ProcessResult buffers result and emits every result that is now in sequence
func (o *Orderer[Out]) ProcessResult(result Result[Out]) error {
	o.pending[result.Index] = result

	slog.Debug("Orderer received result",
		"index", result.Index,
		"worker_id", result.WorkerID,
		"pending_count", len(o.pending),
		"next_expected", o.nextExpected,
	)

	for {
		next, exists := o.pending[o.nextExpected]
		if !exists {
			// Next expected result hasn't been produced yet
			break
		}

		if err := o.emit(next); err != nil {
			return err
		}

		delete(o.pending, o.nextExpected)
		o.nextExpected++
	}

	return nil
}

// GetPendingCount returns the number of results waiting for an earlier one
func (o *Orderer[Out]) GetPendingCount() int {
	return len(o.pending)
}

// GetNextExpected returns the index of the next result to emit
func (o *Orderer[Out]) GetNextExpected() int {
	return o.nextExpected
}

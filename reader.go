package fanout

import (
	"go.uber.org/atomic"

	"github.com/ygrebnov/fanout/metrics"
)

// Reader is a sequential, stateful producer of row batches. It is accessed
// only from the coordinator's goroutine, never concurrently; implementations
// do not need to be safe for concurrent use.
type Reader[T any] interface {
	// ReadBatch returns up to max rows from the stream, advancing it.
	ReadBatch(max int) ([]T, error)

	// AtEnd reports whether the stream is exhausted. Once true it stays true.
	AtEnd() bool

	// TotalTransactions returns the number of rows handed out so far.
	TotalTransactions() int64

	// Close releases the reader's resources and records final counters into
	// the provided sink.
	Close(m metrics.Provider) error
}

// SliceReader serves rows from an in-memory slice. It is the reference Reader
// implementation, suitable for tests, examples, and small in-process runs.
type SliceReader[T any] struct {
	rows  []T
	pos   int
	count atomic.Int64
}

// NewSliceReader creates a SliceReader over the given rows. The slice is not
// copied; the caller must not mutate it during the run.
func NewSliceReader[T any](rows []T) *SliceReader[T] {
	return &SliceReader[T]{rows: rows}
}

// ReadBatch returns up to max rows, advancing the cursor.
func (r *SliceReader[T]) ReadBatch(max int) ([]T, error) {
	if max <= 0 || r.pos >= len(r.rows) {
		return nil, nil
	}
	n := len(r.rows) - r.pos
	if n > max {
		n = max
	}
	batch := r.rows[r.pos : r.pos+n]
	r.pos += n
	r.count.Add(int64(n))
	return batch, nil
}

// AtEnd reports whether every row has been handed out.
func (r *SliceReader[T]) AtEnd() bool { return r.pos >= len(r.rows) }

// TotalTransactions returns the number of rows handed out so far.
// Safe to call from any goroutine.
func (r *SliceReader[T]) TotalTransactions() int64 { return r.count.Load() }

// Close records the final transaction counter into the sink.
func (r *SliceReader[T]) Close(m metrics.Provider) error {
	if m != nil {
		m.Counter("fanout.reader.transactions", metrics.WithUnit("1")).Add(r.count.Load())
	}
	return nil
}

package fanout

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/atomic"

	"github.com/ygrebnov/fanout/metrics"
)

// workerBuffer adapts the coordinator's push-based row delivery into a
// pull-based processing loop running on its own goroutine, and adapts the
// Target's per-row failures into a single terminal failure report.
//
// Queue ownership: the queue channel has exactly one producer (the
// coordinator, during initial fill and refill) and one consumer (the worker's
// own run loop). A delivery is one batch of at most capacity rows handed over
// in a single send, so the worker can never observe a half-delivered batch
// and re-notify while a refill is still in progress. A batch is only ever
// sent to a worker holding no rows, so the send never blocks.
type workerBuffer[T any] struct {
	id       int
	capacity int
	queue    chan []T
	target   Target[T]
	coord    *Distributor[T]

	// stop, once closed, means no further refills will come. The worker
	// drains whatever is still queued and terminates.
	stop     chan struct{}
	stopOnce sync.Once

	processed atomic.Int64
	terminal  atomic.Bool

	// lastErr is written by the worker's own goroutine before the terminal
	// report and read by the caller only after the completion barrier.
	lastErr error
}

func newWorkerBuffer[T any](id, capacity int, target Target[T], coord *Distributor[T]) *workerBuffer[T] {
	return &workerBuffer[T]{
		id:       id,
		capacity: capacity,
		queue:    make(chan []T, 1),
		target:   target,
		coord:    coord,
		stop:     make(chan struct{}),
	}
}

// run is the worker's processing loop. It drains delivered batches against
// the Target, notifies the coordinator on each empty episode, and reports a
// terminal state exactly once.
func (w *workerBuffer[T]) run() {
	for {
		// Consume anything already delivered without blocking.
		select {
		case batch := <-w.queue:
			if !w.processBatch(batch) {
				return
			}
			continue
		default:
		}

		// Buffer drained. A stop that has already arrived (initial fill hit
		// end-of-data, or a sibling failed) means nothing more is coming.
		select {
		case <-w.stop:
			w.drainAndFinish()
			return
		default:
		}

		// One notification per empty episode; the coordinator answers with
		// either a batch or the stop signal.
		w.coord.notifyQueueEmpty(w)

		select {
		case batch := <-w.queue:
			if !w.processBatch(batch) {
				return
			}
		case <-w.stop:
			w.drainAndFinish()
			return
		}
	}
}

// drainAndFinish handles the stop signal: a batch delivery racing with the
// stop is still processed before the worker terminates, so no delivered row
// is ever dropped.
func (w *workerBuffer[T]) drainAndFinish() {
	select {
	case batch := <-w.queue:
		if !w.processBatch(batch) {
			return
		}
	default:
	}
	w.finish(false)
}

// processBatch feeds rows to the Target in delivery order. It returns false
// when the worker has gone terminal due to a processing failure.
func (w *workerBuffer[T]) processBatch(rows []T) bool {
	for _, row := range rows {
		if err := w.target.Process(row); err != nil {
			w.lastErr = newWorkerTaggedError(fmt.Errorf("%w: %w", ErrProcessingFailed, err), w.id)
			w.finish(true)
			return false
		}
		w.processed.Inc()
	}
	return true
}

// finish reports the terminal state exactly once.
func (w *workerBuffer[T]) finish(failed bool) {
	if !w.terminal.CompareAndSwap(false, true) {
		return
	}
	w.coord.notifyComplete(w, failed)
}

// refill pulls a batch from the reader sized to the buffer's capacity and
// hands it to the worker in a single send, returning the row count read.
// Invoked only by the coordinator, and only for a worker holding no rows.
func (w *workerBuffer[T]) refill(r Reader[T]) (int, error) {
	rows, err := r.ReadBatch(w.capacity)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	w.queue <- rows
	return len(rows), nil
}

// signalNoMoreData marks that no further refills will come. Idempotent.
// Invoked only by the coordinator.
func (w *workerBuffer[T]) signalNoMoreData() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// close records the worker's processed-row metric and releases the Target if
// it owns closable resources.
func (w *workerBuffer[T]) close(m metrics.Provider) error {
	m.Counter(
		fmt.Sprintf("fanout.worker.%d.rows", w.id),
		metrics.WithUnit("1"),
		metrics.WithDescription("rows processed by this worker"),
	).Add(w.processed.Load())
	if c, ok := w.target.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

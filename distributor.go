package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/ygrebnov/fanout/metrics"
)

// Distributor fans one sequential Reader out to a fixed set of buffered
// workers. Topology is fixed before the run via AddWorker; a Distributor
// instance executes its run exactly once.
type Distributor[T any] struct {
	// noCopy prevents accidental copying of the coordinator.
	nc noCopy

	config *config
	reader Reader[T]
	log    log.FieldLogger

	// workers is ordered by registration and never mutated during a run.
	workers []*workerBuffer[T]

	// emptyQ is the fairness queue: workers enqueue themselves when their
	// buffer drains, the coordinator dequeues in FIFO order. The channel
	// receive doubles as the coalescing work-available wakeup; the queue
	// content, not the number of wakeups, is the source of truth.
	emptyQ chan *workerBuffer[T]

	// done is the completion latch, closed exactly once when the last
	// worker reports terminal state.
	done     chan struct{}
	doneOnce atomic.Bool

	running atomic.Int64
	failed  atomic.Int64

	// started guards against re-running: the synchronization primitives
	// above are initialized for a single run and are not safe to reset.
	started atomic.Bool

	// readErr captures a Reader failure observed by the coordinator.
	// Written only from the coordination goroutine, read after the barrier.
	readErr error

	waited  time.Duration
	elapsed time.Duration

	closer *closeSequencer
}

// noCopy is a vet-recognized marker to discourage copying types with this
// field embedded. It works with the "-copylocks" analyzer via the presence of
// Lock/Unlock methods.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New creates a Distributor over the given reader using functional options.
func New[T any](reader Reader[T], opts ...Option) (*Distributor[T], error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrInvalidConfig)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	d := &Distributor[T]{
		config: &cfg,
		reader: reader,
		log:    cfg.Logger,
		done:   make(chan struct{}),
		closer: newCloseSequencer(),
	}
	d.closer.setFinal(reader.Close)
	return d, nil
}

// AddWorker registers a buffered worker before the run starts. A zero
// bufferCapacity selects the configured default. Worker ids must be unique.
func (d *Distributor[T]) AddWorker(id int, bufferCapacity int, target Target[T]) error {
	if d.started.Load() {
		return ErrRunStarted
	}
	if target == nil {
		return fmt.Errorf("%w: nil target", ErrInvalidConfig)
	}
	for _, wb := range d.workers {
		if wb.id == id {
			return ErrDuplicateWorker
		}
	}
	if bufferCapacity <= 0 {
		bufferCapacity = d.config.DefaultBufferCapacity
	}
	wb := newWorkerBuffer[T](id, bufferCapacity, target, d)
	d.workers = append(d.workers, wb)
	d.closer.addWorker(wb.close)
	return nil
}

// Run executes the distribution: initial fair fill, worker startup, then the
// coordination loop until every worker reaches a terminal state. It returns a
// non-nil error only for usage violations; worker failures are reported via
// Failures after it returns.
//
// There is no mid-run cancellation: ctx only bounds Reader throttling waits.
// A canceled context stops sourcing new batches and winds the run down the
// same way data exhaustion does, letting workers drain what they hold.
func (d *Distributor[T]) Run(ctx context.Context) error {
	// Reject an unusable topology before consuming the run-once guard, so a
	// failed precondition leaves the instance runnable.
	if len(d.workers) == 0 {
		return ErrNoWorkers
	}
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	logger := d.log.WithField("run_id", uuid.NewString())
	start := time.Now()

	d.running.Store(int64(len(d.workers)))
	d.failed.Store(0)
	// Each worker notifies at most once per empty episode and then suspends
	// until served, so the queue never holds more than one entry per worker
	// and enqueuing never blocks.
	d.emptyQ = make(chan *workerBuffer[T], len(d.workers))

	endOfData := d.initialFill(ctx, logger)

	for _, wb := range d.workers {
		go wb.run()
	}

	d.coordinate(ctx, logger, endOfData)

	d.elapsed = time.Since(start)
	d.logSummary(logger)
	return nil
}

// initialFill seeds every worker's queue from the reader in registration
// order, before any worker goroutine starts. Workers that cannot be fed
// (end-of-data or a read failure) get the stop signal up front.
func (d *Distributor[T]) initialFill(ctx context.Context, logger log.FieldLogger) bool {
	endOfData := false
	for _, wb := range d.workers {
		if endOfData {
			wb.signalNoMoreData()
			continue
		}
		n, err := d.sourceBatch(ctx, wb)
		if err != nil {
			d.readErr = fmt.Errorf("%w: %w", ErrReadFailed, err)
			endOfData = true
			wb.signalNoMoreData()
			logger.WithError(err).WithField("worker", wb.id).Debug("initial fill aborted")
			continue
		}
		logger.WithFields(log.Fields{"worker": wb.id, "rows": n}).Debug("initial fill")
		if d.reader.AtEnd() {
			endOfData = true
		}
	}
	return endOfData
}

// coordinate is the coordination loop. It suspends only on the combined
// completion-or-work-available wait and drains the fairness queue to empty
// before suspending again, so no empty worker is left unserved across a wake
// cycle.
func (d *Distributor[T]) coordinate(ctx context.Context, logger log.FieldLogger, endOfData bool) {
	for {
		waitStart := time.Now()
		select {
		case <-d.done:
			d.waited += time.Since(waitStart)
			return
		case wb := <-d.emptyQ:
			d.waited += time.Since(waitStart)
			endOfData = d.serve(ctx, logger, wb, endOfData)
		drain:
			for {
				select {
				case wb := <-d.emptyQ:
					endOfData = d.serve(ctx, logger, wb, endOfData)
				default:
					break drain
				}
			}
		}
	}
}

// serve answers one empty-buffer notification: refill from the reader while
// data remains, stop the worker otherwise. A sibling failure forces shutdown
// for every worker served afterwards, even if the reader is not exhausted.
func (d *Distributor[T]) serve(ctx context.Context, logger log.FieldLogger, wb *workerBuffer[T], endOfData bool) bool {
	if d.failed.Load() > 0 || ctx.Err() != nil {
		endOfData = true
	}
	if endOfData {
		wb.signalNoMoreData()
		logger.WithField("worker", wb.id).Debug("no more data, stopping worker")
		return true
	}

	n, err := d.sourceBatch(ctx, wb)
	if err != nil {
		d.readErr = fmt.Errorf("%w: %w", ErrReadFailed, err)
		wb.signalNoMoreData()
		logger.WithError(err).WithField("worker", wb.id).Debug("read failed, stopping worker")
		return true
	}
	if n == 0 {
		// Nothing to deliver; release the worker rather than leaving it
		// suspended with an empty queue.
		wb.signalNoMoreData()
		logger.WithField("worker", wb.id).Debug("source drained, stopping worker")
		return true
	}
	logger.WithFields(log.Fields{"worker": wb.id, "rows": n}).Debug("refilled worker")
	return d.reader.AtEnd()
}

// sourceBatch reads one batch for wb, honoring the configured rate limit.
// The reader is only ever touched here, from the coordination goroutine.
func (d *Distributor[T]) sourceBatch(ctx context.Context, wb *workerBuffer[T]) (int, error) {
	if lim := d.config.ReadLimiter; lim != nil {
		if err := lim.WaitN(ctx, wb.capacity); err != nil {
			return 0, err
		}
	}
	return wb.refill(d.reader)
}

// notifyQueueEmpty enqueues the worker into the fairness queue and wakes the
// coordinator. Called from worker goroutines; safe for concurrent use.
func (d *Distributor[T]) notifyQueueEmpty(wb *workerBuffer[T]) {
	d.emptyQ <- wb
}

// notifyComplete records one worker's terminal state. The last worker to
// terminate sets the completion latch exactly once. Called from worker
// goroutines; safe for concurrent use.
func (d *Distributor[T]) notifyComplete(_ *workerBuffer[T], failed bool) {
	if failed {
		d.failed.Inc()
	}
	if d.running.Dec() == 0 {
		if d.doneOnce.CompareAndSwap(false, true) {
			close(d.done)
		}
	}
}

// Failures returns the failures captured during the run, one entry per failed
// worker (tagged with its id, see ExtractWorkerID) plus a Reader failure if
// one occurred. Valid only after Run has returned; an empty result is the
// success signal.
func (d *Distributor[T]) Failures() []error {
	var failures []error
	if d.readErr != nil {
		failures = append(failures, d.readErr)
	}
	for _, wb := range d.workers {
		if wb.lastErr != nil {
			failures = append(failures, wb.lastErr)
		}
	}
	return failures
}

// TotalTransactions forwards the Reader's processed-row count.
func (d *Distributor[T]) TotalTransactions() int64 {
	return d.reader.TotalTransactions()
}

// Close releases every worker first (finalizing worker-side metrics), then
// the Reader. Best-effort: a failing worker close never prevents the
// remaining closes, and the Reader close is always attempted. Idempotent.
func (d *Distributor[T]) Close(m metrics.Provider) error {
	if m == nil {
		m = metrics.NewNoopProvider()
	}
	m.Histogram(
		"fanout.run.wait_seconds",
		metrics.WithUnit("seconds"),
		metrics.WithDescription("time the coordinator spent waiting for notifications"),
	).Record(d.waited.Seconds())
	return d.closer.close(m)
}

// logSummary emits the run-end summary: duration, waiting-time percentage,
// transaction and failure counts. Escalates to a warning when the coordinator
// spent more than the configured threshold of the run waiting.
func (d *Distributor[T]) logSummary(logger log.FieldLogger) {
	waitPct := 0.0
	if d.elapsed > 0 {
		waitPct = 100 * float64(d.waited) / float64(d.elapsed)
	}
	entry := logger.WithFields(log.Fields{
		"workers":      len(d.workers),
		"failed":       d.failed.Load(),
		"transactions": d.reader.TotalTransactions(),
		"duration":     d.elapsed,
		"wait_pct":     fmt.Sprintf("%.1f", waitPct),
	})
	if waitPct > d.config.WaitWarnThreshold {
		entry.Warn("run complete; coordinator spent most of the run waiting")
		return
	}
	entry.Info("run complete")
}

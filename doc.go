// Package fanout distributes a single sequential stream of rows to many
// parallel workers at high throughput, keeping each worker fed with buffered
// work while remaining fair and resilient to individual worker failure.
//
// Topology
// A Distributor owns one Reader (the sequential source) and a fixed set of
// buffered workers, each registered via AddWorker before the run starts. Every
// worker owns a bounded queue of pending rows and a Target that consumes them.
//
// Protocol
//   - Initial fill: before any worker starts, the Distributor fills each
//     worker's queue from the Reader in registration order.
//   - Demand-driven refill: a worker that drains its queue notifies the
//     Distributor and suspends; the Distributor serves empty workers in
//     earliest-emptied-first order, refilling from the Reader or, once the
//     Reader is exhausted, telling them to stop.
//   - Failure containment: a worker failure never aborts its siblings
//     mid-batch. Healthy workers drain their already-buffered rows and then
//     receive the stop signal, so no already-read row is discarded.
//   - Completion barrier: Run returns after every worker has reported a
//     terminal state exactly once; captured failures are available from
//     Failures afterwards.
//
// Lifecycle
// A Distributor instance runs exactly once. Re-invoking Run is a usage error
// and returns ErrAlreadyRun. After the run, Close releases every worker first
// and the Reader last, recording final per-worker counters into the supplied
// metrics sink.
//
// The per-row processing chain is opaque to this package: callers supply it as
// a Target (or TargetFunc) per worker.
package fanout

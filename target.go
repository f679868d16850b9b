package fanout

// Target consumes rows on behalf of one worker. A returned error is treated
// as unrecoverable for that worker: processing stops and the error is captured
// as the worker's failure.
//
// A Target is only ever invoked from its owning worker's goroutine. If it also
// implements io.Closer, Close is invoked during the distributor's close phase.
type Target[T any] interface {
	Process(row T) error
}

// TargetFunc adapts func(T) error to Target[T].
type TargetFunc[T any] func(T) error

// Process calls f(row).
func (f TargetFunc[T]) Process(row T) error { return f(row) }

package fanout

import "errors"

const Namespace = "fanout"

var (
	ErrAlreadyRun = errors.New(
		Namespace + ": a distributor instance can execute its run exactly once",
	)
	ErrRunStarted = errors.New(
		Namespace + ": cannot add a worker after the run has started",
	)
	ErrDuplicateWorker = errors.New(Namespace + ": worker id already registered")
	ErrNoWorkers       = errors.New(Namespace + ": run requires at least one registered worker")
	ErrProcessingFailed = errors.New(Namespace + ": row processing failed")
	ErrReadFailed       = errors.New(Namespace + ": reading from the source failed")
	ErrInvalidConfig    = errors.New(Namespace + ": invalid configuration")
)

package fanout

import (
	"errors"
	"fmt"
)

// WorkerMetaError exposes correlation metadata for a captured worker failure.
type WorkerMetaError interface {
	error
	Unwrap() error
	WorkerID() (int, bool)
}

type workerTaggedError struct {
	err error
	id  int
}

func newWorkerTaggedError(err error, id int) error {
	if err == nil {
		return nil
	}
	return &workerTaggedError{err: err, id: id}
}

func (e *workerTaggedError) Error() string { return e.err.Error() }
func (e *workerTaggedError) Unwrap() error { return e.err }

func (e *workerTaggedError) WorkerID() (int, bool) { return e.id, true }

func (e *workerTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "worker(id=%d): %+v", e.id, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractWorkerID returns the owning worker's id from err if present.
func ExtractWorkerID(err error) (int, bool) {
	var wme WorkerMetaError
	if errors.As(err, &wme) {
		return wme.WorkerID()
	}
	return 0, false
}

package fanout

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/ygrebnov/fanout/metrics"
)

// closeSequencer encapsulates the teardown sequence for a Distributor.
// It is a wiring helper: it owns no resources itself; it orchestrates the
// worker closers and the final reader close in a deterministic order.
//
// close() is safe for concurrent calls; the sequence executes exactly once.

type closeSequencer struct {
	workers []func(metrics.Provider) error
	final   func(metrics.Provider) error

	once sync.Once
	err  error
}

func newCloseSequencer() *closeSequencer {
	return &closeSequencer{}
}

func (cs *closeSequencer) addWorker(fn func(metrics.Provider) error) {
	cs.workers = append(cs.workers, fn)
}

func (cs *closeSequencer) setFinal(fn func(metrics.Provider) error) {
	cs.final = fn
}

// close executes the teardown sequence exactly once:
// 1) close every worker in registration order, continuing past failures so
//    each one gets the chance to finalize its metrics
// 2) close the shared reader, always attempted, releasing source resources
//    only after worker-side metrics are final
// Failures are aggregated; the first call's result is returned to all callers.
func (cs *closeSequencer) close(m metrics.Provider) error {
	cs.once.Do(func() {
		var result *multierror.Error
		for _, fn := range cs.workers {
			if err := fn(m); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if cs.final != nil {
			if err := cs.final(m); err != nil {
				result = multierror.Append(result, err)
			}
		}
		cs.err = result.ErrorOrNil()
	})
	return cs.err
}

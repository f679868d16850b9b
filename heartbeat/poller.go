package heartbeat

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// defaultProbeTimeout bounds a single liveness probe.
const defaultProbeTimeout = 5 * time.Second

// Probe checks an external process for liveness. A nil return means alive.
type Probe func(ctx context.Context) error

// Poller runs a liveness Probe on every heartbeat tick. After threshold
// consecutive failures it invokes onDown once; a subsequent success re-arms it.
//
// OnTick is intended as a heartbeat Subscriber. Probes never overlap: a tick
// arriving while the previous probe is still in flight is skipped.
type Poller struct {
	probe     Probe
	threshold int
	onDown    func(error)
	timeout   time.Duration
	log       log.FieldLogger

	// inFlight is the mutual-exclusion gate for probe state below.
	inFlight  atomic.Bool
	misses    int
	downFired bool
}

// NewPoller creates a Poller invoking onDown after threshold consecutive
// probe failures. A threshold below 1 is treated as 1. A nil logger selects
// the logrus standard logger.
func NewPoller(probe Probe, threshold int, onDown func(error), logger log.FieldLogger) *Poller {
	if threshold < 1 {
		threshold = 1
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Poller{
		probe:     probe,
		threshold: threshold,
		onDown:    onDown,
		timeout:   defaultProbeTimeout,
		log:       logger,
	}
}

// OnTick runs one liveness probe. Safe for concurrent use; overlapping calls
// are dropped, keeping at most one probe in flight.
func (p *Poller) OnTick(_ Tick) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer p.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.probe(ctx)
	if err == nil {
		p.misses = 0
		p.downFired = false
		return
	}

	p.misses++
	p.log.WithError(err).WithField("misses", p.misses).Debug("liveness probe failed")
	if p.misses >= p.threshold && !p.downFired {
		p.downFired = true
		if p.onDown != nil {
			p.onDown(err)
		}
	}
}

// Package heartbeat provides a periodic server-time tick publisher, an
// external-process liveness poller driven by it, and a small service adapter
// wiring the two together.
package heartbeat

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Tick carries one heartbeat observation.
type Tick struct {
	Seq uint64
	At  time.Time
}

// Subscriber receives ticks. Every invocation runs on its own goroutine: a
// slow subscriber delays neither the timer nor its siblings, and the timer
// goroutine never awaits subscriber completion.
type Subscriber func(Tick)

// Heartbeat publishes a Tick to all subscribers at a fixed interval.
type Heartbeat struct {
	interval time.Duration
	log      log.FieldLogger

	mu   sync.Mutex
	subs []Subscriber

	stopCh     chan struct{}
	tickerWG   sync.WaitGroup
	dispatchWG sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// New creates a Heartbeat ticking at the given interval.
// A nil logger selects the logrus standard logger.
func New(interval time.Duration, logger log.FieldLogger) *Heartbeat {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Heartbeat{
		interval: interval,
		log:      logger,
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers fn to receive future ticks. Safe for concurrent use and
// may be called before or after Start; a tick being published concurrently
// may or may not reach the new subscriber.
func (h *Heartbeat) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.subs = append(h.subs, fn)
	h.mu.Unlock()
}

// Start launches the timer goroutine. Idempotent.
func (h *Heartbeat) Start() {
	h.startOnce.Do(func() {
		h.tickerWG.Add(1)
		go h.loop()
	})
}

func (h *Heartbeat) loop() {
	defer h.tickerWG.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-h.stopCh:
			return
		case at := <-ticker.C:
			seq++
			h.publish(Tick{Seq: seq, At: at})
		}
	}
}

// publish dispatches the tick to a snapshot of the subscriber list, one
// goroutine per subscriber, without waiting for any of them.
func (h *Heartbeat) publish(t Tick) {
	h.mu.Lock()
	subs := make([]Subscriber, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	h.log.WithField("seq", t.Seq).Debug("heartbeat tick")
	for _, fn := range subs {
		h.dispatchWG.Add(1)
		go func(fn Subscriber) {
			defer h.dispatchWG.Done()
			fn(t)
		}(fn)
	}
}

// Stop halts the timer and waits for in-flight subscriber dispatches to
// finish. Idempotent; no ticks are published after Stop returns.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.tickerWG.Wait()
		h.dispatchWG.Wait()
	})
}

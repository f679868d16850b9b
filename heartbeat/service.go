package heartbeat

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Service hosts a Heartbeat wired to a liveness Poller: Start subscribes the
// poller and launches the timer, Stop tears the timer down and waits for
// in-flight probes.
type Service struct {
	hb     *Heartbeat
	poller *Poller
	log    log.FieldLogger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewService wires hb to poller. A nil logger selects the logrus standard
// logger.
func NewService(hb *Heartbeat, poller *Poller, logger log.FieldLogger) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{hb: hb, poller: poller, log: logger}
}

// Start subscribes the poller to the heartbeat and starts the timer.
// Idempotent.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		s.hb.Subscribe(s.poller.OnTick)
		s.hb.Start()
		s.log.Info("heartbeat service started")
	})
}

// Stop halts the heartbeat and waits for in-flight probe dispatches.
// Idempotent.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.hb.Stop()
		s.log.Info("heartbeat service stopped")
	})
}

package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestPoller_FiresAfterThreshold(t *testing.T) {
	probeErr := errors.New("process unreachable")
	var downCount atomic.Int64

	p := NewPoller(
		func(context.Context) error { return probeErr },
		3,
		func(err error) {
			require.ErrorIs(t, err, probeErr)
			downCount.Inc()
		},
		nil,
	)

	for i := range 5 {
		p.OnTick(Tick{Seq: uint64(i + 1)})
	}
	require.Equal(t, int64(1), downCount.Load(), "OnDown fired more than once without a re-arm")
}

func TestPoller_SuccessReArms(t *testing.T) {
	var healthy atomic.Bool
	var downCount atomic.Int64

	p := NewPoller(
		func(context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("down")
		},
		2,
		func(error) { downCount.Inc() },
		nil,
	)

	p.OnTick(Tick{})
	p.OnTick(Tick{})
	require.Equal(t, int64(1), downCount.Load())

	// Recovery resets both the miss counter and the fired latch.
	healthy.Store(true)
	p.OnTick(Tick{})
	healthy.Store(false)
	p.OnTick(Tick{})
	p.OnTick(Tick{})
	require.Equal(t, int64(2), downCount.Load())
}

func TestPoller_SkipsOverlappingProbes(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var probes atomic.Int64

	p := NewPoller(
		func(context.Context) error {
			probes.Inc()
			close(started)
			<-release
			return nil
		},
		1,
		nil,
		nil,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.OnTick(Tick{Seq: 1})
	}()
	<-started

	// Ticks arriving while the probe is in flight are dropped.
	p.OnTick(Tick{Seq: 2})
	p.OnTick(Tick{Seq: 3})
	close(release)
	wg.Wait()

	require.Equal(t, int64(1), probes.Load())
}

func TestPoller_ThresholdFloor(t *testing.T) {
	var fired atomic.Bool
	p := NewPoller(
		func(context.Context) error { return errors.New("down") },
		0, // treated as 1
		func(error) { fired.Store(true) },
		nil,
	)
	p.OnTick(Tick{})
	require.True(t, fired.Load())
}

func TestService_StartStop(t *testing.T) {
	down := make(chan error, 1)
	p := NewPoller(
		func(context.Context) error { return errors.New("gone") },
		1,
		func(err error) {
			select {
			case down <- err:
			default:
			}
		},
		nil,
	)
	s := NewService(New(time.Millisecond, nil), p, nil)
	s.Start()
	s.Start() // idempotent

	select {
	case <-down:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never reported the process down")
	}

	s.Stop()
	s.Stop() // idempotent
}

package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicProvider_CounterReuseByName(t *testing.T) {
	p := NewBasicProvider()

	c1 := p.Counter("rows", WithUnit("1"))
	c2 := p.Counter("rows")
	require.Same(t, c1, c2)

	c1.Add(3)
	c2.Add(2)
	require.Equal(t, int64(5), c1.(*BasicCounter).Snapshot())
}

func TestBasicProvider_HistogramAggregates(t *testing.T) {
	p := NewBasicProvider()

	h := p.Histogram("wait_seconds", WithDescription("coordinator wait time"))
	h.Record(1.0)
	h.Record(3.0)
	h.Record(2.0)

	snap := h.(*BasicHistogram).Snapshot()
	require.Equal(t, int64(3), snap.Count)
	require.Equal(t, 6.0, snap.Sum)
	require.Equal(t, 1.0, snap.Min)
	require.Equal(t, 3.0, snap.Max)
	require.Equal(t, 2.0, snap.Mean)
}

func TestBasicProvider_EmptyHistogramSnapshot(t *testing.T) {
	p := NewBasicProvider()
	snap := p.Histogram("unused").(*BasicHistogram).Snapshot()
	require.Equal(t, int64(0), snap.Count)
	require.Equal(t, 0.0, snap.Mean)
}

func TestBasicProvider_ConcurrentUse(t *testing.T) {
	p := NewBasicProvider()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				p.Counter("shared").Add(1)
				p.Histogram("shared_hist").Record(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1600), p.Counter("shared").(*BasicCounter).Snapshot())
	require.Equal(t, int64(1600), p.Histogram("shared_hist").(*BasicHistogram).Snapshot().Count)
}

func TestInstrumentOptions(t *testing.T) {
	cfg := applyOptions([]InstrumentOption{
		WithDescription("desc"),
		WithUnit("seconds"),
		WithAttributes(map[string]string{"component": "distributor"}),
		nil,
	})
	require.Equal(t, "desc", cfg.Description)
	require.Equal(t, "seconds", cfg.Unit)
	require.Equal(t, map[string]string{"component": "distributor"}, cfg.Attributes)
}

func TestNoopProvider(t *testing.T) {
	p := NewNoopProvider()
	// No-ops must be safe to use and never panic.
	p.Counter("x").Add(1)
	p.Histogram("y").Record(1.5)
}

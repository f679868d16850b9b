package tests

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ygrebnov/fanout"
)

// Every row the reader produces is delivered to exactly one worker, for any
// worker count / buffer capacity combination.
func TestDistribution_NoLossNoDuplication(t *testing.T) {
	tests := []struct {
		name     string
		workers  int
		capacity int
		rows     int
	}{
		{name: "single worker", workers: 1, capacity: 8, rows: 100},
		{name: "capacity one", workers: 4, capacity: 1, rows: 37},
		{name: "more capacity than rows", workers: 3, capacity: 100, rows: 25},
		{name: "uneven split", workers: 3, capacity: 10, rows: 25},
		{name: "many workers few rows", workers: 16, capacity: 4, rows: 10},
		{name: "large", workers: 8, capacity: 32, rows: 10000},
		{name: "empty source", workers: 3, capacity: 10, rows: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := fanout.New[int](fanout.NewSliceReader(rowsN(tc.rows)))
			require.NoError(t, err)

			targets := make([]*collector, tc.workers)
			for i := range targets {
				targets[i] = &collector{}
				require.NoError(t, d.AddWorker(i, tc.capacity, targets[i]))
			}

			require.NoError(t, d.Run(context.Background()))
			require.Empty(t, d.Failures())
			require.Equal(t, int64(tc.rows), d.TotalTransactions())

			var all []int
			for _, tgt := range targets {
				all = append(all, tgt.rows...)
			}
			require.Len(t, all, tc.rows)
			sort.Ints(all)
			for i, v := range all {
				require.Equal(t, i+1, v, "row %d lost or duplicated", i+1)
			}
		})
	}
}

// Rows handed to a given worker preserve reader order within that worker.
func TestDistribution_PerWorkerOrder(t *testing.T) {
	d, err := fanout.New[int](fanout.NewSliceReader(rowsN(5000)))
	require.NoError(t, err)

	targets := make([]*collector, 5)
	for i := range targets {
		targets[i] = &collector{}
		require.NoError(t, d.AddWorker(i, 16, targets[i]))
	}

	require.NoError(t, d.Run(context.Background()))

	for i, tgt := range targets {
		require.True(t, sort.IntsAreSorted(tgt.rows), "worker %d received rows out of reader order", i)
	}
}

// With buffer capacity 1 and enough rows, every worker is served: the
// earliest-emptied-first policy never starves a worker behind its siblings.
func TestDistribution_NoWorkerStarved(t *testing.T) {
	const workers = 4
	d, err := fanout.New[int](fanout.NewSliceReader(rowsN(400)))
	require.NoError(t, err)

	targets := make([]*collector, workers)
	for i := range targets {
		targets[i] = &collector{}
		require.NoError(t, d.AddWorker(i, 1, targets[i]))
	}

	require.NoError(t, d.Run(context.Background()))
	require.Equal(t, int64(400), d.TotalTransactions())

	for i, tgt := range targets {
		require.Greater(t, tgt.count(), 0, "worker %d was starved", i)
	}
}

// A generous rate limit leaves the distribution result unchanged.
func TestDistribution_WithRateLimit(t *testing.T) {
	d, err := fanout.New[int](
		fanout.NewSliceReader(rowsN(200)),
		fanout.WithReadRateLimit(rate.NewLimiter(rate.Limit(1_000_000), 64)),
	)
	require.NoError(t, err)

	targets := make([]*collector, 4)
	for i := range targets {
		targets[i] = &collector{}
		require.NoError(t, d.AddWorker(i, 16, targets[i]))
	}

	require.NoError(t, d.Run(context.Background()))
	require.Empty(t, d.Failures())
	require.Equal(t, int64(200), d.TotalTransactions())

	total := 0
	for _, tgt := range targets {
		total += tgt.count()
	}
	require.Equal(t, 200, total)
}

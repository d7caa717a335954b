package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/cache"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
)

// testModel builds a small four-component design with a net chain.
func testModel(t *testing.T) *layout.Model {
	t.Helper()
	m, err := layout.New(40, 40, 1)
	require.NoError(t, err)
	for _, id := range []string{"alu", "fpu", "dec", "lsu"} {
		require.NoError(t, m.AddComponent(layout.Component{ID: id, Width: 6, Height: 6}))
	}
	nets := [][2]string{{"alu", "fpu"}, {"fpu", "dec"}, {"dec", "lsu"}}
	for i, n := range nets {
		require.NoError(t, m.AddNet(layout.Net{
			ID:   string(rune('a' + i)),
			Pins: []layout.Pin{{Component: n[0]}, {Component: n[1]}},
		}))
	}
	return m
}

// testOptions keeps runs short enough for tests.
func testOptions(designID string) Options {
	opts := Options{DesignID: designID}
	opts.Placement = place.DefaultParams()
	opts.Placement.Seed = 7
	opts.Placement.MaxIterations = 800
	opts.Placement.StallLimit = 0
	return opts
}

func TestOptimizeProducesTerminalRun(t *testing.T) {
	eng := New(nil, nil, nil)
	defer eng.Close()

	run, err := eng.Optimize(context.Background(), testModel(t), testOptions("soc-a"))
	require.NoError(t, err)

	require.True(t, run.Status.Terminal(), "got status %s", run.Status)
	require.Contains(t, []Status{StatusConverged, StatusMaxIterReached}, run.Status)
	require.NotNil(t, run.Placement)
	require.NotNil(t, run.Routing)
	require.GreaterOrEqual(t, run.Rounds, 1)
	require.False(t, run.Routing.Partial)
	require.NotZero(t, run.Score)
	require.False(t, run.FinishedAt.IsZero())
}

func TestOptimizeValidatesOptions(t *testing.T) {
	eng := New(nil, nil, nil)
	defer eng.Close()

	_, err := eng.Optimize(context.Background(), testModel(t), Options{})
	require.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	opts := testOptions("soc-a")
	opts.PlacementAlgorithm = "genetic"
	_, err = eng.Optimize(context.Background(), testModel(t), opts)
	require.True(t, errors.Is(err, errors.ErrCodeInvalidAlgorithm))
}

func TestOptimizeInfeasibleDesign(t *testing.T) {
	m, err := layout.New(4, 4, 1)
	require.NoError(t, err)
	require.NoError(t, m.AddComponent(layout.Component{ID: "huge", Width: 10, Height: 10}))

	eng := New(nil, nil, nil)
	defer eng.Close()

	run, err := eng.Optimize(context.Background(), m, testOptions("soc-small"))
	require.NoError(t, err)
	require.Equal(t, StatusInfeasible, run.Status)
	require.Nil(t, run.Routing)
}

func TestOptimizeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(nil, nil, nil)
	defer eng.Close()

	run, err := eng.Optimize(ctx, testModel(t), testOptions("soc-b"))
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, run.Status)
}

func TestOptimizeDeadlineDuringPlacement(t *testing.T) {
	opts := testOptions("soc-c")
	opts.Timeout = time.Nanosecond

	eng := New(nil, nil, nil)
	defer eng.Close()

	run, err := eng.Optimize(context.Background(), testModel(t), opts)
	require.NoError(t, err)
	require.Equal(t, StatusMaxIterReached, run.Status)
}

func TestOptimizeCachesFirstRound(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	eng := New(fc, nil, nil)
	defer eng.Close()

	m := testModel(t)
	run1, err := eng.Optimize(context.Background(), m, testOptions("soc-d"))
	require.NoError(t, err)
	require.False(t, run1.CacheInfo.PlacementHit)

	run2, err := eng.Optimize(context.Background(), testModel(t), testOptions("soc-d"))
	require.NoError(t, err)
	require.True(t, run2.CacheInfo.PlacementHit, "second run should reuse the cached placement")
}

func TestOptimizeRefreshBypassesCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	eng := New(fc, nil, nil)
	defer eng.Close()

	_, err = eng.Optimize(context.Background(), testModel(t), testOptions("soc-e"))
	require.NoError(t, err)

	opts := testOptions("soc-e")
	opts.Refresh = true
	run, err := eng.Optimize(context.Background(), testModel(t), opts)
	require.NoError(t, err)
	require.False(t, run.CacheInfo.PlacementHit)
}

func TestLeaseConflict(t *testing.T) {
	eng := New(nil, nil, nil)
	defer eng.Close()

	// A run that cannot finish on its own: huge budget, no cooling, no
	// stall cutoff. It ends only when its context is cancelled.
	opts := testOptions("soc-f")
	opts.Placement.MaxIterations = 1 << 30
	opts.Placement.Alpha = 0.9999999
	opts.Placement.MinTemperature = 0

	ctx, cancel := context.WithCancel(context.Background())
	run1, task, err := eng.Enqueue(ctx, testModel(t), opts, 0)
	require.NoError(t, err)
	require.NotNil(t, run1)

	// The lease is taken at submission, so a second run conflicts now.
	_, err = eng.Optimize(context.Background(), testModel(t), testOptions("soc-f"))
	require.True(t, errors.Is(err, errors.ErrCodeConflict), "got %v", err)

	cancel()
	require.NoError(t, task.Wait(context.Background()))
	require.Equal(t, StatusCancelled, run1.Status)

	// Lease released after the first run terminates.
	run3, err := eng.Optimize(context.Background(), testModel(t), testOptions("soc-f"))
	require.NoError(t, err)
	require.True(t, run3.Status.Terminal())
}

func TestOptimizeDeterministic(t *testing.T) {
	eng := New(nil, nil, nil)
	defer eng.Close()

	run1, err := eng.Optimize(context.Background(), testModel(t), testOptions("soc-g"))
	require.NoError(t, err)
	run2, err := eng.Optimize(context.Background(), testModel(t), testOptions("soc-h"))
	require.NoError(t, err)

	require.Equal(t, run1.Score, run2.Score, "identical inputs must score identically")
	require.Equal(t, run1.Placement.Positions, run2.Placement.Positions)
}

func TestConvergenceIsRelativeImprovement(t *testing.T) {
	eng := New(nil, nil, nil)
	defer eng.Close()

	// A single-round budget has no predecessor round to compare against,
	// so it can never report convergence.
	opts := testOptions("soc-k")
	opts.MaxRounds = 1
	run, err := eng.Optimize(context.Background(), testModel(t), opts)
	require.NoError(t, err)
	require.Equal(t, StatusMaxIterReached, run.Status)

	// Relative improvement is at most 1 per round, so an epsilon above 1
	// stops the loop on the first round that has a predecessor.
	opts = testOptions("soc-l")
	opts.MaxRounds = 5
	opts.ConvergenceEpsilon = 2
	run, err = eng.Optimize(context.Background(), testModel(t), opts)
	require.NoError(t, err)
	require.Equal(t, StatusConverged, run.Status)
	require.Equal(t, 2, run.Rounds)
}

func TestBestSnapshotNotDisplacedByUnroutedRound(t *testing.T) {
	eng := New(nil, nil, nil)
	defer eng.Close()

	m := testModel(t)
	opts := testOptions("soc-j")
	require.NoError(t, opts.ValidateAndSetDefaults())

	run, err := eng.Optimize(context.Background(), m, opts)
	require.NoError(t, err)
	require.NotNil(t, run.Routing)
	bestScore := run.Score

	// Re-offer the identical placement without a routing result, as a
	// round cut short before its routing phase would. Its score omits
	// the congestion objective, so it must not replace the routed best.
	_, kept := eng.keepIfBest(m, opts, run, run.Placement, nil)
	require.False(t, kept, "a placement-only round must not displace a routed snapshot")
	require.NotNil(t, run.Routing)
	require.Equal(t, bestScore, run.Score)
}

func TestRunEventsOrdered(t *testing.T) {
	eng := New(nil, nil, nil)
	defer eng.Close()

	// A run that cannot finish on its own, so the subscription is
	// guaranteed to attach while the run is live.
	opts := testOptions("soc-i")
	opts.Placement.MaxIterations = 1 << 30
	opts.Placement.Alpha = 0.9999999
	opts.Placement.MinTemperature = 0

	ctx, cancel := context.WithCancel(context.Background())
	run, task, err := eng.Enqueue(ctx, testModel(t), opts, 0)
	require.NoError(t, err)

	events, unsubscribe := eng.Broker.Subscribe(run.ID)
	defer unsubscribe()

	cancel()
	require.NoError(t, task.Wait(context.Background()))

	var got []Event
	for ev := range events {
		got = append(got, ev)
		if ev.Status.Terminal() {
			break
		}
	}
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	require.True(t, last.Status.Terminal(), "stream must end with a terminal status")
	require.Equal(t, StatusCancelled, last.Status)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i].Iteration, got[i-1].Iteration, "iteration numbers must not decrease")
	}
}

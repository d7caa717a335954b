package route

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
)

// pointModel builds a chip with 1x1 components at the given positions and
// one two-pin net per consecutive pair of ids in nets.
func pointModel(t *testing.T, w, h float64, comps map[string][2]float64) *layout.Model {
	t.Helper()
	m, err := layout.New(w, h, 1)
	require.NoError(t, err)
	for id, pos := range comps {
		require.NoError(t, m.AddComponent(layout.Component{ID: id, Width: 1, Height: 1, X: pos[0], Y: pos[1]}))
	}
	return m
}

func addNet(t *testing.T, m *layout.Model, id string, weight float64, comps ...string) {
	t.Helper()
	pins := make([]layout.Pin, len(comps))
	for i, c := range comps {
		pins[i] = layout.Pin{Component: c}
	}
	require.NoError(t, m.AddNet(layout.Net{ID: id, Weight: weight, Pins: pins}))
}

// replayUsage recomputes edge usage from two-pin net paths.
func replayUsage(res *Result) map[layout.GridEdge]int {
	usage := make(map[layout.GridEdge]int)
	for _, path := range res.Paths {
		for i := 1; i < len(path); i++ {
			if layout.Manhattan(path[i-1], path[i]) == 1 {
				usage[layout.NewGridEdge(path[i-1], path[i])]++
			}
		}
	}
	return usage
}

func TestAStarExactManhattanOnEmptyGrid(t *testing.T) {
	m := pointModel(t, 10, 10, map[string][2]float64{"a": {0, 0}, "b": {9, 9}})
	addNet(t, m, "n", 0, "a", "b")

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, DefaultParams())
	require.NoError(t, err)

	require.False(t, res.Partial)
	require.Equal(t, 18, res.Lengths["n"], "A* must match the Manhattan distance on an empty grid")
	require.Len(t, res.Paths["n"], 19)
}

func TestMazeExactManhattanOnEmptyGrid(t *testing.T) {
	m := pointModel(t, 10, 10, map[string][2]float64{"a": {0, 0}, "b": {9, 9}})
	addNet(t, m, "n", 0, "a", "b")

	r, err := ForAlgorithm(Maze)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, DefaultParams())
	require.NoError(t, err)

	require.False(t, res.Partial)
	require.Equal(t, 18, res.Lengths["n"], "maze routing must match the Manhattan distance on an empty grid")
}

func TestMultiPinNetRoutesAsTree(t *testing.T) {
	m := pointModel(t, 10, 10, map[string][2]float64{"a": {0, 0}, "b": {5, 0}, "c": {0, 7}})
	addNet(t, m, "n", 0, "a", "b", "c")

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, DefaultParams())
	require.NoError(t, err)

	require.False(t, res.Partial)
	// MST over the three pins: 5 hops to b plus 7 hops to c.
	require.Equal(t, 12, res.Lengths["n"])
}

func TestSecondNetDetoursAroundCongestion(t *testing.T) {
	// Both nets want the row-0 corridor; with capacity 1 and the default
	// congestion penalty the second net must detour instead of stacking.
	m := pointModel(t, 6, 6, map[string][2]float64{
		"a1": {0, 0}, "a2": {4, 0},
		"b1": {1, 0}, "b2": {3, 0},
	})
	addNet(t, m, "long", 0, "a1", "a2")
	addNet(t, m, "short", 0, "b1", "b2")

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, DefaultParams())
	require.NoError(t, err)

	require.False(t, res.Partial)
	require.Empty(t, res.Unrouted)
	for e, used := range replayUsage(res) {
		require.LessOrEqual(t, used, 1, "edge %v over capacity", e)
	}
}

func TestBottleneckReportsPartial(t *testing.T) {
	// A 1-row grid leaves no detour: overlapping nets cannot both fit
	// within capacity 1, so the less critical one must land in Unrouted.
	m := pointModel(t, 10, 1, map[string][2]float64{
		"a1": {0, 0}, "a2": {9, 0},
		"b1": {3, 0}, "b2": {6, 0},
	})
	addNet(t, m, "critical", 2, "a1", "a2")
	addNet(t, m, "spare", 1, "b1", "b2")

	p := DefaultParams()
	p.MaxRipupRounds = 5

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, p)
	require.NoError(t, err)

	require.True(t, res.Partial)
	require.Equal(t, []string{"spare"}, res.Unrouted, "exactly the low-criticality net is unroutable")
	require.Contains(t, res.Paths, "critical")
	for e, used := range replayUsage(res) {
		require.LessOrEqual(t, used, 1, "edge %v over capacity in a capacity-enforced result", e)
	}
}

func TestMazeBottleneckPartial(t *testing.T) {
	m := pointModel(t, 10, 1, map[string][2]float64{
		"a1": {0, 0}, "a2": {9, 0},
		"b1": {3, 0}, "b2": {6, 0},
	})
	addNet(t, m, "critical", 2, "a1", "a2")
	addNet(t, m, "spare", 1, "b1", "b2")

	r, err := ForAlgorithm(Maze)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, DefaultParams())
	require.NoError(t, err)

	require.True(t, res.Partial)
	require.Equal(t, []string{"spare"}, res.Unrouted)
}

func TestRouteRejectsOutOfBoundsPin(t *testing.T) {
	m := pointModel(t, 10, 10, map[string][2]float64{"a": {0, 0}, "b": {9, 9}})
	addNet(t, m, "n", 0, "a", "b")

	// The placement pushes b outside the chip.
	_, err := Route(context.Background(), m, map[string]place.Position{"b": {X: 50, Y: 0}}, AStar, DefaultParams())
	require.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "got %v", err)
}

func TestRouteDoesNotMutateInput(t *testing.T) {
	m := pointModel(t, 10, 10, map[string][2]float64{"a": {0, 0}, "b": {9, 9}})
	addNet(t, m, "n", 0, "a", "b")

	_, err := Route(context.Background(), m, map[string]place.Position{"a": {X: 3, Y: 3}}, AStar, DefaultParams())
	require.NoError(t, err)
	require.Zero(t, m.Component("a").X, "caller's model must stay untouched")
}

func TestCancellationPerNet(t *testing.T) {
	m := pointModel(t, 10, 10, map[string][2]float64{
		"a1": {0, 0}, "a2": {9, 9},
		"b1": {0, 9}, "b2": {9, 0},
	})
	addNet(t, m, "first", 0, "a1", "a2")
	addNet(t, m, "second", 0, "b1", "b2")

	p := DefaultParams()
	routed := 0
	p.OnNet = func(netID string, round int) bool {
		routed++
		return routed <= 1
	}

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, p)
	require.NoError(t, err)

	require.Equal(t, StopCancelled, res.Stop)
	require.True(t, res.Partial)
	require.Len(t, res.Paths, 1, "the net routed before the stop is kept")
	require.Len(t, res.Unrouted, 1)
}

func TestRoutingDeterministic(t *testing.T) {
	build := func() *layout.Model {
		m := pointModel(t, 12, 12, map[string][2]float64{
			"a1": {0, 0}, "a2": {11, 11},
			"b1": {0, 11}, "b2": {11, 0},
			"c1": {5, 0}, "c2": {5, 11},
		})
		addNet(t, m, "na", 0, "a1", "a2")
		addNet(t, m, "nb", 0, "b1", "b2")
		addNet(t, m, "nc", 0, "c1", "c2")
		return m
	}

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)
	res1, err := r.Route(context.Background(), build(), DefaultParams())
	require.NoError(t, err)
	res2, err := r.Route(context.Background(), build(), DefaultParams())
	require.NoError(t, err)

	require.Equal(t, res1.Paths, res2.Paths, "routing must be reproducible")
	require.Equal(t, res1.Lengths, res2.Lengths)
}

func TestCapacityEnforcementDeterministic(t *testing.T) {
	// Three nets share the single row of a 10x1 grid; with capacity 1 and
	// no rip-up rounds, capacity enforcement must rip victims off the
	// contested edges.
	build := func() *layout.Model {
		m := pointModel(t, 10, 1, map[string][2]float64{
			"a1": {0, 0}, "a2": {9, 0},
			"b1": {2, 0}, "b2": {7, 0},
			"c1": {4, 0}, "c2": {5, 0},
		})
		addNet(t, m, "na", 3, "a1", "a2")
		addNet(t, m, "nb", 2, "b1", "b2")
		addNet(t, m, "nc", 1, "c1", "c2")
		return m
	}

	p := DefaultParams()
	p.MaxRipupRounds = 0

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)

	first, err := r.Route(context.Background(), build(), p)
	require.NoError(t, err)
	require.True(t, first.Partial)
	require.NotEmpty(t, first.Unrouted)

	// The victim set must be the same on every run; it must not depend
	// on the iteration order of the edge usage map.
	for i := 0; i < 100; i++ {
		res, err := r.Route(context.Background(), build(), p)
		require.NoError(t, err)
		require.Equal(t, first.Unrouted, res.Unrouted)
	}
}

func TestCongestionSummary(t *testing.T) {
	m := pointModel(t, 6, 6, map[string][2]float64{"a": {0, 0}, "b": {5, 0}})
	addNet(t, m, "n", 0, "a", "b")

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, DefaultParams())
	require.NoError(t, err)

	sum := res.CongestionSummary()
	require.InDelta(t, 1.0, sum.Max, 1e-9, "used edges at capacity 1 report full utilization")
	require.Positive(t, sum.Avg)
	require.NotEmpty(t, res.CellCongestion)
}

func TestSameCellPinsTriviallyRouted(t *testing.T) {
	m := pointModel(t, 10, 10, map[string][2]float64{"a": {2, 2}, "b": {2, 2}})
	addNet(t, m, "n", 0, "a", "b")

	r, err := ForAlgorithm(AStar)
	require.NoError(t, err)
	res, err := r.Route(context.Background(), m, DefaultParams())
	require.NoError(t, err)

	require.False(t, res.Partial)
	require.Zero(t, res.Lengths["n"])
}

func TestUnknownRoutingAlgorithm(t *testing.T) {
	_, err := ForAlgorithm("steiner")
	require.True(t, errors.Is(err, errors.ErrCodeInvalidAlgorithm))
}

func TestOrderingPolicies(t *testing.T) {
	m := pointModel(t, 12, 12, map[string][2]float64{
		"a1": {0, 0}, "a2": {11, 11},
		"b1": {0, 0}, "b2": {2, 0},
	})
	addNet(t, m, "short", 5, "b1", "b2")
	addNet(t, m, "long", 1, "a1", "a2")
	g := layout.NewGrid(m)

	require.Equal(t, []string{"long", "short"}, LongestFirst{}.Order(m, g, m.Nets()))
	require.Equal(t, []string{"short", "long"}, DeclarationOrder{}.Order(m, g, m.Nets()))
	require.Equal(t, []string{"short", "long"}, CriticalFirst{}.Order(m, g, m.Nets()))
}

// Package route implements the routing optimizer.
//
// The chip bounding box is discretized into a grid at the model's cell size;
// each cell-to-cell edge carries integer capacity. Two strategies are
// provided behind the Router interface: congestion-aware A* (the default)
// and maze routing (Lee's breadth-first wavefront, the hop-count-optimal
// baseline). Multi-pin nets are connected incrementally, each remaining pin
// joining the net's partially routed tree via a shortest path.
//
// After the initial pass, edges exceeding capacity trigger bounded
// rip-up-and-reroute: the lowest-criticality nets crossing a violated edge
// are removed and re-routed against updated congestion costs. Nets still
// unroutable after the bound land on the unrouted list and the result is
// marked partial rather than failed.
package route

import (
	"context"
	"sort"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/objective"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
)

// Algorithm selects a routing strategy.
type Algorithm string

const (
	// AStar is the congestion-aware heuristic search strategy.
	AStar Algorithm = "astar"
	// Maze is Lee's BFS wavefront, shortest in hop count and blind to
	// congestion costs.
	Maze Algorithm = "maze"
)

// ValidAlgorithms is the set of supported routing algorithms.
var ValidAlgorithms = map[Algorithm]bool{
	AStar: true,
	Maze:  true,
}

// StopReason records why a routing run terminated.
type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopCancelled StopReason = "cancelled"
	StopDeadline  StopReason = "deadline"
)

// NetFunc observes routing progress. It is called once before each net is
// routed (including re-routes) with the net id and the rip-up round (0 for
// the initial pass). Returning false stops the run at the next net
// boundary; already-routed nets are kept and the rest are reported
// unrouted.
type NetFunc func(netID string, round int) bool

// Params configures a routing run. Start from DefaultParams and override.
type Params struct {
	// MaxRipupRounds bounds the rip-up-and-reroute loop.
	MaxRipupRounds int `json:"max_ripup_rounds" toml:"max_ripup_rounds"`

	// PenaltyWeight scales the superlinear congestion penalty added to
	// the unit edge cost in A* search: cost = 1 + w*(usage/capacity)^2.
	PenaltyWeight float64 `json:"penalty_weight" toml:"penalty_weight"`

	// NodeBudget caps the number of nodes a single search may expand.
	// A net whose search exhausts the budget is recorded as that net's
	// failure; the run continues. Zero means 8x the grid cell count.
	NodeBudget int `json:"node_budget" toml:"node_budget"`

	// Ordering decides initial net processing order. Nil means
	// LongestFirst.
	Ordering OrderingPolicy `json:"-"`

	// OnNet, when set, observes and can stop the run per net.
	OnNet NetFunc `json:"-"`
}

// DefaultParams returns the standard routing parameters.
func DefaultParams() Params {
	return Params{
		MaxRipupRounds: 10,
		PenaltyWeight:  10,
	}
}

// Validate checks parameter sanity.
func (p Params) Validate() error {
	if p.MaxRipupRounds < 0 {
		return errors.New(errors.ErrCodeInvalidParams, "max_ripup_rounds must not be negative, got %d", p.MaxRipupRounds)
	}
	if p.PenaltyWeight < 0 {
		return errors.New(errors.ErrCodeInvalidParams, "penalty_weight must not be negative, got %g", p.PenaltyWeight)
	}
	return nil
}

// Result is the outcome of a routing run.
type Result struct {
	// Paths maps each routed net id to its ordered cell path. For
	// multi-pin nets the path is the concatenation of the tree's
	// segments in connection order.
	Paths map[string][]layout.Cell `json:"paths"`

	// Lengths maps each routed net id to its wirelength in grid hops.
	Lengths map[string]int `json:"lengths"`

	// CellCongestion maps grid cells to their utilization ratio, the
	// maximum usage/capacity over the cell's incident edges. Cells with
	// no routed wires are absent.
	CellCongestion map[layout.Cell]float64 `json:"-"`

	// Unrouted lists the ids of nets that could not be routed within
	// capacity and budget. Empty in a complete result.
	Unrouted []string `json:"unrouted,omitempty"`

	// Partial is true when any net is unrouted or the run was stopped
	// early.
	Partial bool `json:"partial"`

	// RipupRounds is the number of rip-up rounds performed.
	RipupRounds int `json:"ripup_rounds"`

	// Stop records the termination cause.
	Stop StopReason `json:"stop"`
}

// TotalWirelength sums the per-net wirelengths.
func (r *Result) TotalWirelength() int {
	var total int
	for _, l := range r.Lengths {
		total += l
	}
	return total
}

// CongestionSummary condenses the congestion map for the objective
// evaluator. Returns the zero summary when nothing is routed.
func (r *Result) CongestionSummary() objective.Congestion {
	var sum objective.Congestion
	if len(r.CellCongestion) == 0 {
		return sum
	}
	var total float64
	for _, u := range r.CellCongestion {
		if u > sum.Max {
			sum.Max = u
		}
		total += u
	}
	sum.Avg = total / float64(len(r.CellCongestion))
	return sum
}

// Router is the routing strategy interface. The model passed to Route must
// already carry the placement to be routed.
type Router interface {
	Route(ctx context.Context, m *layout.Model, p Params) (*Result, error)
}

// ForAlgorithm returns the router implementing the given algorithm.
func ForAlgorithm(alg Algorithm) (Router, error) {
	switch alg {
	case AStar, "":
		return &router{astar: true}, nil
	case Maze:
		return &router{astar: false}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidAlgorithm, "unknown routing algorithm %q (must be one of: astar, maze)", alg)
	}
}

// Route applies a placement to a clone of m and routes it with the given
// algorithm. This is the operation the orchestrator calls; m itself is
// never mutated.
func Route(ctx context.Context, m *layout.Model, placement map[string]place.Position, alg Algorithm, p Params) (*Result, error) {
	r, err := ForAlgorithm(alg)
	if err != nil {
		return nil, err
	}
	work := m.Clone()
	for id, pos := range placement {
		work.SetPosition(id, pos.X, pos.Y)
	}
	return r.Route(ctx, work, p)
}

// validateNets rejects nets whose pins reference unknown components or lie
// outside the chip bounding box. Run before any routing work.
func validateNets(m *layout.Model) error {
	for _, n := range m.Nets() {
		for _, pin := range n.Pins {
			x, y, ok := m.PinPosition(pin)
			if !ok {
				return errors.New(errors.ErrCodeInvalidInput, "net %q references unknown component %q", n.ID, pin.Component)
			}
			if x < 0 || y < 0 || x > m.Width || y > m.Height {
				return errors.New(errors.ErrCodeInvalidInput, "net %q pin on %q at (%g,%g) lies outside the %gx%g chip", n.ID, pin.Component, x, y, m.Width, m.Height)
			}
		}
	}
	return nil
}

// pinCells returns the distinct grid cells of a net's pins, in pin order.
func pinCells(m *layout.Model, g layout.Grid, n layout.Net) []layout.Cell {
	seen := make(map[layout.Cell]bool, len(n.Pins))
	cells := make([]layout.Cell, 0, len(n.Pins))
	for _, pin := range n.Pins {
		x, y, ok := m.PinPosition(pin)
		if !ok {
			continue
		}
		c := g.Snap(x, y)
		if !seen[c] {
			seen[c] = true
			cells = append(cells, c)
		}
	}
	return cells
}

// netSpan estimates a net's Manhattan extent: the half-perimeter of the
// bounding box of its pin cells. Used by the default ordering policy.
func netSpan(m *layout.Model, g layout.Grid, n layout.Net) int {
	cells := pinCells(m, g, n)
	if len(cells) < 2 {
		return 0
	}
	minX, minY := cells[0].X, cells[0].Y
	maxX, maxY := cells[0].X, cells[0].Y
	for _, c := range cells[1:] {
		minX = min(minX, c.X)
		maxX = max(maxX, c.X)
		minY = min(minY, c.Y)
		maxY = max(maxY, c.Y)
	}
	return (maxX - minX) + (maxY - minY)
}

// sortByCriticality orders net ids ascending by weight, breaking ties by
// id, so rip-up victims are selected deterministically.
func sortByCriticality(m *layout.Model, ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		wi := m.Net(ids[i]).EffectiveWeight()
		wj := m.Net(ids[j]).EffectiveWeight()
		if wi != wj {
			return wi < wj
		}
		return ids[i] < ids[j]
	})
}

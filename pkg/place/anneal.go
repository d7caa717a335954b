package place

import (
	"context"
	"math"
	"math/rand"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/objective"
)

// Annealer implements simulated-annealing placement.
//
// The state is the grid-snapped position assignment of all movable
// components. Each iteration applies one of two perturbations chosen
// uniformly - swapping two components or displacing one component within a
// shrinking neighborhood - and accepts it by the Metropolis criterion under
// a geometric cooling schedule. The initial temperature is estimated from
// the standard deviation of cost deltas over a burn-in of random
// perturbations.
type Annealer struct{}

// annealState carries the mutable search state of one run.
type annealState struct {
	model   *layout.Model
	movable []string
	rng     *rand.Rand
	params  Params

	cost     float64
	best     *layout.Model
	bestCost float64
	radius   float64
}

// Place runs simulated annealing on a clone of m.
func (a *Annealer) Place(ctx context.Context, m *layout.Model, p Params) (*Result, error) {
	if early, err := precheck(m, p); early != nil || err != nil {
		return early, err
	}

	work := m.Clone()
	st := &annealState{
		model:   work,
		movable: work.MovableIDs(),
		rng:     rand.New(rand.NewSource(p.Seed)),
		params:  p,
		radius:  math.Max(work.Width, work.Height),
	}

	if p.Initial != nil {
		applyInitial(work, p.Initial)
	} else {
		st.randomize()
	}
	st.cost = st.evaluate()
	st.best = work.Clone()
	st.bestCost = st.cost
	initialCost := st.cost

	temp := st.estimateInitialTemperature()
	stall := 0
	iterations := 0
	stop := StopMaxIterations
	var trajectory []float64

loop:
	for i := 0; i < p.MaxIterations; i++ {
		if reason := stopForContext(ctx); reason != "" {
			stop = reason
			break
		}
		if p.OnIteration != nil && !p.OnIteration(i, st.bestCost) {
			stop = StopCancelled
			break
		}

		undo := st.perturb()
		newCost := st.evaluate()
		delta := newCost - st.cost

		if delta <= 0 || st.rng.Float64() < math.Exp(-delta/temp) {
			st.cost = newCost
		} else {
			undo()
		}

		if st.cost < st.bestCost {
			st.bestCost = st.cost
			st.best = st.model.Clone()
			stall = 0
		} else {
			stall++
		}

		iterations = i + 1
		if p.RecordTrajectory {
			trajectory = append(trajectory, st.bestCost)
		}

		temp *= p.Alpha
		st.radius = math.Max(st.radius*p.Alpha, st.model.CellSize)

		switch {
		case p.StallLimit > 0 && stall >= p.StallLimit:
			stop = StopStalled
			break loop
		case temp < p.MinTemperature:
			stop = StopMinTemperature
			break loop
		}
	}

	res := &Result{
		Positions:   snapshotPositions(st.best),
		HPWL:        objective.HPWL(st.best),
		Overlap:     objective.OverlapPenalty(st.best),
		Feasible:    feasible(st.best),
		Iterations:  iterations,
		Stop:        stop,
		InitialCost: initialCost,
		FinalCost:   st.bestCost,
		Trajectory:  trajectory,
	}
	return res, nil
}

// evaluate computes the weighted annealing cost of the current state.
func (s *annealState) evaluate() float64 {
	p := s.params
	cost := p.WirelengthWeight*objective.HPWL(s.model) +
		p.OverlapWeight*objective.OverlapPenalty(s.model) +
		p.OutOfBoundsWeight*objective.OutOfBoundsPenalty(s.model)
	if p.CongestionCost != nil {
		cost += p.CongestionWeight * p.CongestionCost(s.model)
	}
	return cost
}

// randomize assigns every movable component a random grid-snapped position
// inside the chip. Overlaps are allowed here; the annealing cost drives
// them out.
func (s *annealState) randomize() {
	for _, id := range s.movable {
		c := s.model.Component(id)
		x := s.randomCoord(s.model.Width - c.Width)
		y := s.randomCoord(s.model.Height - c.Height)
		s.model.SetPosition(id, x, y)
	}
}

// randomCoord picks a grid-snapped coordinate in [0, limit].
func (s *annealState) randomCoord(limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return s.snap(s.rng.Float64() * limit)
}

// snap rounds a coordinate down to the grid.
func (s *annealState) snap(v float64) float64 {
	return math.Floor(v/s.model.CellSize) * s.model.CellSize
}

// perturb applies one random move and returns a closure restoring the
// previous state. With one movable component only the displace move is
// available.
func (s *annealState) perturb() (undo func()) {
	if len(s.movable) >= 2 && s.rng.Intn(2) == 0 {
		return s.swap()
	}
	return s.displace()
}

// swap exchanges the positions of two distinct random components.
func (s *annealState) swap() (undo func()) {
	i := s.rng.Intn(len(s.movable))
	j := s.rng.Intn(len(s.movable) - 1)
	if j >= i {
		j++
	}
	a, b := s.model.Component(s.movable[i]), s.model.Component(s.movable[j])
	ax, ay, bx, by := a.X, a.Y, b.X, b.Y
	s.model.SetPosition(a.ID, bx, by)
	s.model.SetPosition(b.ID, ax, ay)
	return func() {
		s.model.SetPosition(a.ID, ax, ay)
		s.model.SetPosition(b.ID, bx, by)
	}
}

// displace moves one random component to a random position within the
// current neighborhood radius, clamped to the chip.
func (s *annealState) displace() (undo func()) {
	if len(s.movable) == 0 {
		return func() {}
	}
	c := s.model.Component(s.movable[s.rng.Intn(len(s.movable))])
	ox, oy := c.X, c.Y

	nx := ox + (s.rng.Float64()*2-1)*s.radius
	ny := oy + (s.rng.Float64()*2-1)*s.radius
	nx = s.snap(clamp(nx, 0, s.model.Width-c.Width))
	ny = s.snap(clamp(ny, 0, s.model.Height-c.Height))
	s.model.SetPosition(c.ID, nx, ny)
	return func() { s.model.SetPosition(c.ID, ox, oy) }
}

// estimateInitialTemperature samples cost deltas from random perturbations
// and returns their standard deviation, the classic T0 heuristic. A
// degenerate sample (all deltas zero) falls back to 1.
func (s *annealState) estimateInitialTemperature() float64 {
	n := s.params.BurnIn
	if n <= 0 || len(s.movable) == 0 {
		return 1
	}
	base := s.evaluate()
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		undo := s.perturb()
		delta := s.evaluate() - base
		undo()
		sum += delta
		sumSq += delta * delta
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance <= 0 {
		return 1
	}
	return math.Sqrt(variance)
}

// feasible reports whether the state has no overlap and all components in
// bounds.
func feasible(m *layout.Model) bool {
	if objective.OverlapPenalty(m) > 0 {
		return false
	}
	for _, id := range m.ComponentIDs() {
		if !m.InBounds(m.Component(id)) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

package place

import (
	"context"
	"math"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/objective"
)

// ForcePlacer implements force-directed placement.
//
// Every net acts as a spring pulling its components toward each other with
// force proportional to the pin-to-pin distance; every overlapping pair
// exerts a separating force that weakens with penetration depth. Positions
// are relaxed iteratively with geometrically decaying damping until the
// maximum per-component displacement drops below epsilon.
type ForcePlacer struct{}

// force is a 2D force accumulator.
type force struct{ x, y float64 }

// Place runs force-directed relaxation on a clone of m.
func (f *ForcePlacer) Place(ctx context.Context, m *layout.Model, p Params) (*Result, error) {
	if early, err := precheck(m, p); early != nil || err != nil {
		return early, err
	}

	work := m.Clone()
	if p.Initial != nil {
		applyInitial(work, p.Initial)
	} else {
		spreadInitial(work)
	}

	movable := work.MovableIDs()
	damping := p.Damping
	initialCost := forceCost(work, p)
	iterations := 0
	stop := StopMaxIterations
	var trajectory []float64

	for i := 0; i < p.MaxIterations; i++ {
		if reason := stopForContext(ctx); reason != "" {
			stop = reason
			break
		}
		if p.OnIteration != nil && !p.OnIteration(i, forceCost(work, p)) {
			stop = StopCancelled
			break
		}

		forces := make(map[string]force, len(movable))
		accumulateNetForces(work, forces)
		accumulateOverlapForces(work, forces)

		maxDisp := 0.0
		for _, id := range movable {
			c := work.Component(id)
			fv := forces[id]
			dx := damping * fv.x
			dy := damping * fv.y

			nx := clamp(c.X+dx, 0, work.Width-c.Width)
			ny := clamp(c.Y+dy, 0, work.Height-c.Height)
			maxDisp = math.Max(maxDisp, math.Hypot(nx-c.X, ny-c.Y))
			work.SetPosition(id, nx, ny)
		}

		iterations = i + 1
		if p.RecordTrajectory {
			trajectory = append(trajectory, forceCost(work, p))
		}
		damping *= p.DampingDecay

		if maxDisp < p.Epsilon {
			stop = StopConverged
			break
		}
	}

	snapToGrid(work)

	return &Result{
		Positions:   snapshotPositions(work),
		HPWL:        objective.HPWL(work),
		Overlap:     objective.OverlapPenalty(work),
		Feasible:    feasible(work),
		Iterations:  iterations,
		Stop:        stop,
		InitialCost: initialCost,
		FinalCost:   forceCost(work, p),
		Trajectory:  trajectory,
	}, nil
}

// forceCost reuses the annealing cost weights so trajectories from both
// strategies are comparable to the benefit estimator.
func forceCost(m *layout.Model, p Params) float64 {
	return p.WirelengthWeight*objective.HPWL(m) +
		p.OverlapWeight*objective.OverlapPenalty(m) +
		p.OutOfBoundsWeight*objective.OutOfBoundsPenalty(m)
}

// spreadInitial lays movable components out on a uniform grid so the
// relaxation starts from a spread-out, deterministic state rather than a
// degenerate pile at the origin.
func spreadInitial(m *layout.Model) {
	movable := m.MovableIDs()
	if len(movable) == 0 {
		return
	}
	cols := int(math.Ceil(math.Sqrt(float64(len(movable)))))
	stepX := m.Width / float64(cols)
	stepY := m.Height / float64((len(movable)+cols-1)/cols)
	for i, id := range movable {
		c := m.Component(id)
		x := clamp(float64(i%cols)*stepX, 0, m.Width-c.Width)
		y := clamp(float64(i/cols)*stepY, 0, m.Height-c.Height)
		m.SetPosition(id, x, y)
	}
}

// accumulateNetForces adds, for every net, a spring pull on each member
// component toward the net's pin centroid, proportional to the distance.
func accumulateNetForces(m *layout.Model, forces map[string]force) {
	for _, n := range m.Nets() {
		if len(n.Pins) < 2 {
			continue
		}
		var cx, cy float64
		count := 0
		for _, p := range n.Pins {
			x, y, ok := m.PinPosition(p)
			if !ok {
				continue
			}
			cx += x
			cy += y
			count++
		}
		if count < 2 {
			continue
		}
		cx /= float64(count)
		cy /= float64(count)

		w := n.EffectiveWeight()
		for _, p := range n.Pins {
			x, y, ok := m.PinPosition(p)
			if !ok {
				continue
			}
			fv := forces[p.Component]
			fv.x += w * (cx - x)
			fv.y += w * (cy - y)
			forces[p.Component] = fv
		}
	}
}

// accumulateOverlapForces adds a separating force for every overlapping
// pair, directed along the centers and weakening with penetration depth so
// barely-touching pairs get the strongest push apart.
func accumulateOverlapForces(m *layout.Model, forces map[string]force) {
	ids := m.ComponentIDs()
	for i := 0; i < len(ids); i++ {
		a := m.Component(ids[i])
		for j := i + 1; j < len(ids); j++ {
			b := m.Component(ids[j])
			depth := overlapDepth(a, b)
			if depth <= 0 {
				continue
			}

			// Unit vector from b's center to a's center; coincident
			// centers fall back to a fixed axis to stay deterministic.
			dx := a.CenterX() - b.CenterX()
			dy := a.CenterY() - b.CenterY()
			dist := math.Hypot(dx, dy)
			if dist < 1e-9 {
				dx, dy, dist = 1, 0, 1
			}
			mag := (a.Width + b.Width) / (1 + depth)
			fx := mag * dx / dist
			fy := mag * dy / dist

			if !a.Fixed {
				fv := forces[a.ID]
				fv.x += fx
				fv.y += fy
				forces[a.ID] = fv
			}
			if !b.Fixed {
				fv := forces[b.ID]
				fv.x -= fx
				fv.y -= fy
				forces[b.ID] = fv
			}
		}
	}
}

// overlapDepth returns the smaller penetration depth of two components, or
// zero when they do not overlap.
func overlapDepth(a, b *layout.Component) float64 {
	w := math.Min(a.X+a.Width, b.X+b.Width) - math.Max(a.X, b.X)
	h := math.Min(a.Y+a.Height, b.Y+b.Height) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return math.Min(w, h)
}

// snapToGrid rounds final positions down to the model's grid, keeping
// components in bounds.
func snapToGrid(m *layout.Model) {
	for _, id := range m.MovableIDs() {
		c := m.Component(id)
		x := clamp(math.Floor(c.X/m.CellSize)*m.CellSize, 0, m.Width-c.Width)
		y := clamp(math.Floor(c.Y/m.CellSize)*m.CellSize, 0, m.Height-c.Height)
		m.SetPosition(id, x, y)
	}
}

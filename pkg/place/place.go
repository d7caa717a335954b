// Package place implements the placement optimizer.
//
// Two strategies are provided behind the Placer interface: simulated
// annealing (the default, a stochastic search over grid-snapped positions)
// and force-directed relaxation (an iterative physical model with spring
// attraction along nets and repulsion between overlapping components).
// Strategies are selected by Algorithm value, so new placers can be added
// without touching call sites.
//
// Placers never mutate the caller's model: each run clones the input once
// and works on the clone. Given identical (model, seed, params), a placer
// produces an identical cost trajectory and final state.
package place

import (
	"context"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
)

// Algorithm selects a placement strategy.
type Algorithm string

const (
	// SimulatedAnnealing is the default stochastic strategy.
	SimulatedAnnealing Algorithm = "annealing"
	// ForceDirected is the iterative spring-relaxation strategy.
	ForceDirected Algorithm = "force"
)

// ValidAlgorithms is the set of supported placement algorithms.
var ValidAlgorithms = map[Algorithm]bool{
	SimulatedAnnealing: true,
	ForceDirected:      true,
}

// StopReason records why a placement run terminated.
type StopReason string

const (
	StopMaxIterations  StopReason = "max_iterations"
	StopStalled        StopReason = "stalled"
	StopMinTemperature StopReason = "min_temperature"
	StopConverged      StopReason = "converged"
	StopCancelled      StopReason = "cancelled"
	StopDeadline       StopReason = "deadline"
	StopInfeasible     StopReason = "infeasible"
)

// Position is a component position proposed by a placer.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Params configures a placement run. The zero value is not usable; start
// from DefaultParams and override.
type Params struct {
	// Seed drives the placer's PRNG. Identical seeds reproduce identical
	// runs bit for bit.
	Seed int64 `json:"seed" toml:"seed"`

	// MaxIterations bounds the annealing loop (and the force-directed
	// relaxation loop).
	MaxIterations int `json:"max_iterations" toml:"max_iterations"`

	// StallLimit terminates annealing after this many consecutive
	// iterations without best-cost improvement.
	StallLimit int `json:"stall_limit" toml:"stall_limit"`

	// Alpha is the geometric cooling factor, 0 < Alpha < 1.
	Alpha float64 `json:"alpha" toml:"alpha"`

	// MinTemperature terminates annealing once the temperature drops
	// below it.
	MinTemperature float64 `json:"min_temperature" toml:"min_temperature"`

	// BurnIn is the number of random perturbations sampled to estimate
	// the initial temperature.
	BurnIn int `json:"burn_in" toml:"burn_in"`

	// Cost weights. Overlap and out-of-bounds are weighted an order of
	// magnitude apart to behave like soft-enforced hard constraints.
	WirelengthWeight  float64 `json:"wirelength_weight" toml:"wirelength_weight"`
	OverlapWeight     float64 `json:"overlap_weight" toml:"overlap_weight"`
	OutOfBoundsWeight float64 `json:"out_of_bounds_weight" toml:"out_of_bounds_weight"`

	// CongestionWeight scales the CongestionCost term when set. Used by
	// the orchestrator's feedback rounds.
	CongestionWeight float64 `json:"congestion_weight" toml:"congestion_weight"`

	// CongestionCost is an optional extra cost term evaluated on the
	// working state, typically derived from a prior routing round's
	// congestion map. Nil disables the term.
	CongestionCost func(*layout.Model) float64 `json:"-"`

	// Initial seeds the run from known positions instead of a random
	// state. Components absent from the map are placed randomly.
	Initial map[string]Position `json:"-"`

	// Force-directed parameters.
	Damping      float64 `json:"damping" toml:"damping"`
	DampingDecay float64 `json:"damping_decay" toml:"damping_decay"`
	Epsilon      float64 `json:"epsilon" toml:"epsilon"`

	// RecordTrajectory captures the best cost after every iteration in
	// Result.Trajectory. Used by the benefit estimator's probe runs.
	RecordTrajectory bool `json:"-"`

	// OnIteration, when set, observes every iteration. Returning false
	// stops the run at the next iteration boundary with StopCancelled.
	OnIteration IterationFunc `json:"-"`
}

// DefaultParams returns the standard placement parameters.
func DefaultParams() Params {
	return Params{
		Seed:              1,
		MaxIterations:     5000,
		StallLimit:        750,
		Alpha:             0.995,
		MinTemperature:    1e-4,
		BurnIn:            24,
		WirelengthWeight:  1,
		OverlapWeight:     10,
		OutOfBoundsWeight: 100,
		CongestionWeight:  5,
		Damping:           0.25,
		DampingDecay:      0.98,
		Epsilon:           0.05,
	}
}

// Validate checks parameter sanity.
func (p Params) Validate() error {
	if p.MaxIterations <= 0 {
		return errors.New(errors.ErrCodeInvalidParams, "max_iterations must be positive, got %d", p.MaxIterations)
	}
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return errors.New(errors.ErrCodeInvalidParams, "alpha must be in (0,1), got %g", p.Alpha)
	}
	if p.StallLimit < 0 {
		return errors.New(errors.ErrCodeInvalidParams, "stall_limit must not be negative, got %d", p.StallLimit)
	}
	if p.Epsilon < 0 {
		return errors.New(errors.ErrCodeInvalidParams, "epsilon must not be negative, got %g", p.Epsilon)
	}
	return nil
}

// Result is the outcome of a placement run.
type Result struct {
	// Positions maps every component id (fixed ones included) to its
	// final position.
	Positions map[string]Position `json:"positions"`

	// HPWL is the weighted half-perimeter wirelength of the final state.
	HPWL float64 `json:"hpwl"`

	// Overlap is the residual pairwise overlap area. Zero in a feasible
	// placement.
	Overlap float64 `json:"overlap"`

	// Feasible is true when the final state has no overlap and every
	// component lies within the chip bounding box.
	Feasible bool `json:"feasible"`

	// Iterations is the number of optimization iterations performed.
	Iterations int `json:"iterations"`

	// Stop records the termination cause.
	Stop StopReason `json:"stop"`

	// InitialCost and FinalCost bracket the weighted cost trajectory.
	InitialCost float64 `json:"initial_cost"`
	FinalCost   float64 `json:"final_cost"`

	// Trajectory holds the best cost after each iteration when
	// Params.RecordTrajectory was set.
	Trajectory []float64 `json:"-"`
}

// IterationFunc observes annealing progress. It is called once per
// iteration with the iteration index and the best cost so far; returning
// false stops the run at the next iteration boundary.
type IterationFunc func(iteration int, bestCost float64) bool

// Placer is the placement strategy interface.
type Placer interface {
	// Place computes positions for all movable components of m. The
	// model is cloned internally and never mutated. Cancellation via ctx
	// is honored at iteration boundaries; the best state found so far is
	// still returned with Stop set to StopCancelled or StopDeadline.
	Place(ctx context.Context, m *layout.Model, p Params) (*Result, error)
}

// ForAlgorithm returns the placer implementing the given algorithm.
func ForAlgorithm(alg Algorithm) (Placer, error) {
	switch alg {
	case SimulatedAnnealing, "":
		return &Annealer{}, nil
	case ForceDirected:
		return &ForcePlacer{}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidAlgorithm, "unknown placement algorithm %q (must be one of: annealing, force)", alg)
	}
}

// precheck validates the model and rejects instances whose component area
// exceeds the chip area before any optimization work.
func precheck(m *layout.Model, p Params) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if m.TotalComponentArea() > m.ChipArea() {
		return &Result{
			Positions: snapshotPositions(m),
			Feasible:  false,
			Stop:      StopInfeasible,
		}, nil
	}
	return nil, nil
}

// snapshotPositions captures every component's current position.
func snapshotPositions(m *layout.Model) map[string]Position {
	pos := make(map[string]Position, m.ComponentCount())
	for _, id := range m.ComponentIDs() {
		c := m.Component(id)
		pos[id] = Position{X: c.X, Y: c.Y}
	}
	return pos
}

// applyInitial seeds a working model from explicit positions.
func applyInitial(m *layout.Model, initial map[string]Position) {
	for id, pos := range initial {
		m.SetPosition(id, pos.X, pos.Y)
	}
}

// stopForContext maps a context error to a stop reason, or "" when the
// context is still live.
func stopForContext(ctx context.Context) StopReason {
	switch ctx.Err() {
	case context.Canceled:
		return StopCancelled
	case context.DeadlineExceeded:
		return StopDeadline
	default:
		return ""
	}
}

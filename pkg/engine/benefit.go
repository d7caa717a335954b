package engine

import (
	"context"
	"math"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
)

// DefaultProbeIterations is the length of the estimator's annealing probe.
const DefaultProbeIterations = 50

// Estimate is the estimator's verdict on a design before a full run.
type Estimate struct {
	// Algorithm is the recommended placement strategy.
	Algorithm place.Algorithm `json:"algorithm"`

	// ProbeIterations is how many annealing iterations the probe ran.
	ProbeIterations int `json:"probe_iterations"`

	// InitialCost is the cost of the probe's starting state.
	InitialCost float64 `json:"initial_cost"`

	// ProjectedCost extrapolates the probe's cost-reduction rate over the
	// full iteration budget.
	ProjectedCost float64 `json:"projected_cost"`

	// ProjectedGain is the projected fractional cost reduction, 0 to 1.
	ProjectedGain float64 `json:"projected_gain"`

	// Confidence grades the projection on the probe trajectory's
	// steadiness, 0 to 1. Noisy trajectories extrapolate poorly and are
	// down-weighted.
	Confidence float64 `json:"confidence"`
}

// Estimator predicts the benefit of a full optimization run from a short
// probe, so callers can triage designs before committing a full budget.
type Estimator struct {
	// ProbeIterations overrides the probe length. Zero means
	// DefaultProbeIterations.
	ProbeIterations int
}

// Estimate probes the design with a short annealing run, extrapolates the
// cost-reduction rate linearly to params.MaxIterations, and compares the
// projection against a force-directed pass to recommend an algorithm.
func (est *Estimator) Estimate(ctx context.Context, m *layout.Model, params place.Params) (*Estimate, error) {
	n := est.ProbeIterations
	if n <= 0 {
		n = DefaultProbeIterations
	}

	probe := params
	probe.MaxIterations = n
	probe.StallLimit = 0
	probe.MinTemperature = 0
	probe.RecordTrajectory = true

	annealer, err := place.ForAlgorithm(place.SimulatedAnnealing)
	if err != nil {
		return nil, err
	}
	pres, err := annealer.Place(ctx, m, probe)
	if err != nil {
		return nil, err
	}
	if pres.Stop == place.StopInfeasible {
		return &Estimate{Algorithm: place.SimulatedAnnealing, ProbeIterations: 0}, nil
	}

	rate := (pres.InitialCost - pres.FinalCost) / float64(n)
	projected := pres.InitialCost - rate*float64(params.MaxIterations)
	if projected < 0 {
		projected = 0
	}
	gain := 0.0
	if pres.InitialCost > 0 {
		gain = (pres.InitialCost - projected) / pres.InitialCost
	}

	e := &Estimate{
		Algorithm:       place.SimulatedAnnealing,
		ProbeIterations: pres.Iterations,
		InitialCost:     pres.InitialCost,
		ProjectedCost:   projected,
		ProjectedGain:   gain,
		Confidence:      trajectoryConfidence(pres.Trajectory),
	}

	// A quick force-directed pass serves as the deterministic baseline:
	// when it already beats the annealing projection, recommend it.
	force, err := place.ForAlgorithm(place.ForceDirected)
	if err != nil {
		return nil, err
	}
	fres, err := force.Place(ctx, m, params)
	if err == nil && fres.Stop != place.StopInfeasible && fres.FinalCost < projected {
		e.Algorithm = place.ForceDirected
	}
	return e, nil
}

// trajectoryConfidence grades how steadily the probe improved. The
// per-iteration improvements' coefficient of variation drives the grade:
// a smooth descent scores near 1, an erratic one near 0.
func trajectoryConfidence(trajectory []float64) float64 {
	if len(trajectory) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(trajectory)-1)
	for i := 1; i < len(trajectory); i++ {
		deltas = append(deltas, trajectory[i-1]-trajectory[i])
	}

	var mean float64
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))

	cv := math.Sqrt(variance) / mean
	return 1 / (1 + cv)
}

// Package engine orchestrates placement and routing into complete
// optimization runs.
//
// A run walks a placement → routing → feedback loop: routing congestion
// from one round feeds back into the next round's placement cost, and a
// feedback round is kept only when it improves the combined score. Runs
// are admitted under a per-design lease, dispatched on a bounded worker
// pool, and report progress through an event broker.
//
// # Usage
//
// Create an Engine and execute a run:
//
//	eng := engine.New(cache, nil, logger)
//	defer eng.Close()
//	opts := engine.Options{DesignID: "soc-quad9"}
//	run, err := eng.Optimize(ctx, model, opts)
package engine

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/cache"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/objective"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/observability"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/route"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultMaxRounds bounds the placement/routing feedback loop.
	DefaultMaxRounds = 3

	// DefaultConvergenceEpsilon is the relative score improvement between
	// consecutive rounds below which a run is declared converged.
	DefaultConvergenceEpsilon = 1e-3
)

// ScoreWeights combine the normalized objectives into one scalar score.
// Lower scores are better.
type ScoreWeights struct {
	Wirelength float64 `json:"wirelength" toml:"wirelength"`
	Overlap    float64 `json:"overlap" toml:"overlap"`
	Area       float64 `json:"area" toml:"area"`
	Congestion float64 `json:"congestion" toml:"congestion"`
}

// DefaultScoreWeights mirror the placement cost weighting: overlap is an
// order of magnitude above wirelength so infeasible states never win.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Wirelength: 1,
		Overlap:    10,
		Area:       1,
		Congestion: 5,
	}
}

// Score collapses a normalized breakdown into the combined scalar.
func (w ScoreWeights) Score(b objective.CostBreakdown) float64 {
	return w.Wirelength*b.HPWL +
		w.Overlap*b.OverlapPenalty +
		w.Area*b.Area +
		w.Congestion*b.CongestionMax
}

// =============================================================================
// Options
// =============================================================================

// Options configures an optimization run. This struct supports JSON and
// TOML serialization for CLI configuration files.
type Options struct {
	// DesignID names the design; it is the lease key. Required.
	DesignID string `json:"design_id" toml:"design_id"`

	// Algorithm selection.
	PlacementAlgorithm place.Algorithm `json:"placement_algorithm,omitempty" toml:"placement_algorithm"`
	RoutingAlgorithm   route.Algorithm `json:"routing_algorithm,omitempty" toml:"routing_algorithm"`

	// Phase parameters. Zero values take the package defaults.
	Placement place.Params `json:"placement,omitempty" toml:"placement"`
	Routing   route.Params `json:"routing,omitempty" toml:"routing"`

	// Feedback loop control.
	MaxRounds          int     `json:"max_rounds,omitempty" toml:"max_rounds"`
	ConvergenceEpsilon float64 `json:"convergence_epsilon,omitempty" toml:"convergence_epsilon"`

	// Weights for the combined score.
	Weights ScoreWeights `json:"weights,omitempty" toml:"weights"`

	// Timeout is the wall-clock budget for the whole run. Zero means no
	// deadline. TOML config files carry it as a duration string, parsed
	// by the CLI.
	Timeout time.Duration `json:"timeout,omitempty" toml:"-"`

	// Refresh bypasses cached results.
	Refresh bool `json:"refresh,omitempty" toml:"refresh"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-" toml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-" toml:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.DesignID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "design_id is required")
	}
	if o.PlacementAlgorithm != "" && !place.ValidAlgorithms[o.PlacementAlgorithm] {
		return errors.New(errors.ErrCodeInvalidAlgorithm, "unknown placement algorithm %q", o.PlacementAlgorithm)
	}
	if o.RoutingAlgorithm != "" && !route.ValidAlgorithms[o.RoutingAlgorithm] {
		return errors.New(errors.ErrCodeInvalidAlgorithm, "unknown routing algorithm %q", o.RoutingAlgorithm)
	}

	if o.Placement.MaxIterations == 0 {
		seed := o.Placement.Seed
		o.Placement = place.DefaultParams()
		if seed != 0 {
			o.Placement.Seed = seed
		}
	}
	if err := o.Placement.Validate(); err != nil {
		return err
	}

	if o.Routing.MaxRipupRounds == 0 && o.Routing.PenaltyWeight == 0 {
		o.Routing = route.DefaultParams()
	}
	if err := o.Routing.Validate(); err != nil {
		return err
	}

	if o.MaxRounds == 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.MaxRounds < 1 {
		return errors.New(errors.ErrCodeInvalidParams, "max_rounds must be positive, got %d", o.MaxRounds)
	}
	if o.ConvergenceEpsilon == 0 {
		o.ConvergenceEpsilon = DefaultConvergenceEpsilon
	}
	if o.ConvergenceEpsilon < 0 {
		return errors.New(errors.ErrCodeInvalidParams, "convergence_epsilon must not be negative, got %g", o.ConvergenceEpsilon)
	}
	if (o.Weights == ScoreWeights{}) {
		o.Weights = DefaultScoreWeights()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// =============================================================================
// Engine
// =============================================================================

// Engine executes optimization runs with caching, leasing, and progress
// events. Multiple goroutines can safely share one Engine.
type Engine struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	Broker *Broker

	pool   *Pool
	leases *leaseTable
}

// New creates an engine with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
func New(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Engine {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		Broker: NewBroker(),
		pool:   NewPool(DefaultPoolWorkers),
		leases: newLeaseTable(),
	}
}

// Close drains the worker pool and releases the cache.
func (e *Engine) Close() error {
	e.pool.Close()
	if e.Cache != nil {
		return e.Cache.Close()
	}
	return nil
}

// Optimize executes a run synchronously. It fails immediately with a
// conflict if the design already has a live run.
func (e *Engine) Optimize(ctx context.Context, m *layout.Model, opts Options) (*OptimizationRun, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	run := newRun(opts.DesignID)
	if err := e.leases.acquire(opts.DesignID, run.ID); err != nil {
		return nil, err
	}
	defer e.leases.release(opts.DesignID)

	err := e.execute(ctx, m, opts, run)
	return run, err
}

// Enqueue submits a run to the worker pool and returns immediately with
// the pending run and a task handle. The design lease is taken before
// queueing, so a conflicting submission fails here, not later.
func (e *Engine) Enqueue(ctx context.Context, m *layout.Model, opts Options, priority int) (*OptimizationRun, *Task, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	run := newRun(opts.DesignID)
	if err := e.leases.acquire(opts.DesignID, run.ID); err != nil {
		return nil, nil, err
	}

	task, err := e.pool.Submit(ctx, priority, func(ctx context.Context) error {
		defer e.leases.release(opts.DesignID)
		return e.execute(ctx, m, opts, run)
	})
	if err != nil {
		e.leases.release(opts.DesignID)
		return nil, nil, err
	}
	return run, task, nil
}

// execute drives a run to a terminal status. The run is mutated in place;
// the returned error covers hard failures only (invalid input, internal),
// not degraded terminal states like partial or infeasible.
func (e *Engine) execute(ctx context.Context, m *layout.Model, opts Options, run *OptimizationRun) (err error) {
	start := time.Now()
	logger := opts.Logger

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	defer func() {
		run.FinishedAt = time.Now()
		if err != nil {
			run.Status = StatusFailed
			run.Error = err.Error()
		}
		e.Broker.Finish(Event{RunID: run.ID, Iteration: run.totalIterations, Round: run.Rounds, BestScore: run.Score, Status: run.Status})
		observability.Engine().OnRunComplete(ctx, run.ID, string(run.Status), time.Since(start))
		e.storeRun(ctx, m, opts, run)
	}()

	run.Status = StatusRunning
	run.Score = math.Inf(1)
	e.Broker.Publish(Event{RunID: run.ID, Status: StatusRunning})

	var prevScore = math.Inf(1)
	var congestion func(*layout.Model) float64
	initial := opts.Placement.Initial

	for round := 0; round < opts.MaxRounds; round++ {
		// Placement phase.
		pres, hit, perr := e.placeRound(ctx, m, opts, run, round, initial, congestion)
		if perr != nil {
			return perr
		}
		if round == 0 {
			run.CacheInfo.PlacementHit = hit
		}
		switch pres.Stop {
		case place.StopInfeasible:
			run.Status = StatusInfeasible
			run.Placement = pres
			return nil
		case place.StopCancelled:
			run.Status = StatusCancelled
			e.keepIfBest(m, opts, run, pres, nil)
			return nil
		case place.StopDeadline:
			// Deadline during placement counts as running out of
			// iteration budget; keep the best snapshot.
			run.Status = StatusMaxIterReached
			e.keepIfBest(m, opts, run, pres, nil)
			return nil
		}

		// Routing phase.
		rres, hit, rerr := e.routeRound(ctx, m, opts, run, round, pres)
		if rerr != nil {
			return rerr
		}
		if round == 0 {
			run.CacheInfo.RoutingHit = hit
		}
		if rres.Stop == route.StopCancelled {
			run.Status = StatusCancelled
			e.keepIfBest(m, opts, run, pres, rres)
			return nil
		}
		if rres.Stop == route.StopDeadline {
			run.Status = StatusPartial
			e.keepIfBest(m, opts, run, pres, rres)
			return nil
		}

		// Score the round and keep it only if it does not regress.
		score, kept := e.keepIfBest(m, opts, run, pres, rres)
		run.Rounds = round + 1
		observability.Engine().OnRoundComplete(ctx, run.ID, round, score, kept)
		e.Broker.Publish(Event{RunID: run.ID, Iteration: run.totalIterations, Round: run.Rounds, BestScore: run.Score, Status: StatusRunning})
		logger.Info("optimization round complete",
			"run", run.ID,
			"round", round,
			"score", score,
			"kept", kept)

		// Round-to-round relative improvement. The first round has no
		// predecessor, so it never converges on its own. A round that
		// fails to improve (zero or negative) also stops the loop.
		if !math.IsInf(prevScore, 1) {
			improvement := (prevScore - score) / math.Max(math.Abs(prevScore), 1e-12)
			if improvement < opts.ConvergenceEpsilon {
				run.Status = StatusConverged
				break
			}
		}
		prevScore = score

		// Feed routing congestion back into the next placement round.
		congestion = congestionCost(m, rres)
		initial = pres.Positions
	}

	if !run.Status.Terminal() {
		run.Status = StatusMaxIterReached
	}
	// A best snapshot with unrouted nets downgrades the terminal status.
	if run.Routing != nil && run.Routing.Partial {
		run.Status = StatusPartial
	}
	return nil
}

// placeRound runs one placement phase. Round 0 with default seeding is
// cacheable; feedback rounds depend on prior congestion and are not.
func (e *Engine) placeRound(ctx context.Context, m *layout.Model, opts Options, run *OptimizationRun, round int, initial map[string]place.Position, congestion func(*layout.Model) float64) (*place.Result, bool, error) {
	params := opts.Placement
	params.Initial = initial
	params.CongestionCost = congestion
	params.OnIteration = func(iteration int, bestCost float64) bool {
		run.totalIterations++
		e.Broker.Publish(Event{RunID: run.ID, Iteration: run.totalIterations, Round: round, BestScore: run.Score, Status: StatusRunning})
		return true
	}

	cacheable := round == 0 && !opts.Refresh
	key := e.Keyer.PlacementKey(m.Fingerprint(), string(opts.PlacementAlgorithm), opts.Placement)
	if cacheable {
		if data, hit, err := e.Cache.Get(ctx, key); err == nil && hit {
			var cached place.Result
			if json.Unmarshal(data, &cached) == nil {
				observability.Cache().OnCacheHit(ctx, "placement")
				return &cached, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "placement")
	}

	placer, err := place.ForAlgorithm(opts.PlacementAlgorithm)
	if err != nil {
		return nil, false, err
	}

	phaseStart := time.Now()
	observability.Engine().OnPlacementStart(ctx, run.ID, string(opts.PlacementAlgorithm), m.ComponentCount())
	res, err := placer.Place(ctx, m, params)
	observability.Engine().OnPlacementComplete(ctx, run.ID, string(opts.PlacementAlgorithm), resIterations(res), time.Since(phaseStart), err)
	if err != nil {
		return nil, false, err
	}

	if cacheable && res.Stop != place.StopCancelled && res.Stop != place.StopDeadline {
		if data, merr := json.Marshal(res); merr == nil {
			_ = e.Cache.Set(ctx, key, data, cache.TTLPlacement)
			observability.Cache().OnCacheSet(ctx, "placement", len(data))
		}
	}
	return res, false, nil
}

// routeRound routes one placement. Only round 0 results are cached; the
// key covers the placed model's fingerprint, so any change of positions
// misses naturally.
func (e *Engine) routeRound(ctx context.Context, m *layout.Model, opts Options, run *OptimizationRun, round int, pres *place.Result) (*route.Result, bool, error) {
	placed := applyPositions(m, pres.Positions)

	params := opts.Routing
	params.OnNet = func(netID string, ripupRound int) bool {
		return ctx.Err() == nil
	}

	cacheable := round == 0 && !opts.Refresh
	key := e.Keyer.RoutingKey(placed.Fingerprint(), string(opts.RoutingAlgorithm), opts.Routing)
	if cacheable {
		if data, hit, err := e.Cache.Get(ctx, key); err == nil && hit {
			var cached route.Result
			if json.Unmarshal(data, &cached) == nil {
				observability.Cache().OnCacheHit(ctx, "routing")
				return &cached, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "routing")
	}

	router, err := route.ForAlgorithm(opts.RoutingAlgorithm)
	if err != nil {
		return nil, false, err
	}

	phaseStart := time.Now()
	observability.Engine().OnRoutingStart(ctx, run.ID, string(opts.RoutingAlgorithm), placed.NetCount())
	res, err := router.Route(ctx, placed, params)
	if err != nil {
		observability.Engine().OnRoutingComplete(ctx, run.ID, string(opts.RoutingAlgorithm), 0, time.Since(phaseStart), err)
		return nil, false, err
	}
	observability.Engine().OnRoutingComplete(ctx, run.ID, string(opts.RoutingAlgorithm), len(res.Unrouted), time.Since(phaseStart), nil)

	if cacheable && res.Stop == route.StopCompleted {
		if data, merr := json.Marshal(res); merr == nil {
			_ = e.Cache.Set(ctx, key, data, cache.TTLRouting)
			observability.Cache().OnCacheSet(ctx, "routing", len(data))
		}
	}
	return res, false, nil
}

// keepIfBest scores a round's snapshot and installs it on the run when it
// does not regress the best score. Returns the round's score and whether
// it was kept.
func (e *Engine) keepIfBest(m *layout.Model, opts Options, run *OptimizationRun, pres *place.Result, rres *route.Result) (float64, bool) {
	placed := applyPositions(m, pres.Positions)
	var cong *objective.Congestion
	if rres != nil {
		c := rres.CongestionSummary()
		cong = &c
	}
	breakdown := objective.Evaluate(placed, cong).Normalize(placed)
	score := opts.Weights.Score(breakdown)

	// A placement-only candidate omits the congestion objective, so its
	// score is not comparable with a routed snapshot's. Never displace
	// routed state with unrouted state.
	if rres == nil && run.Routing != nil {
		return score, false
	}

	if score <= run.Score || math.IsInf(run.Score, 1) {
		run.Score = score
		run.Placement = pres
		run.Routing = rres
		run.Breakdown = breakdown
		return score, true
	}
	return score, false
}

// storeRun persists the terminal run snapshot.
func (e *Engine) storeRun(ctx context.Context, m *layout.Model, opts Options, run *OptimizationRun) {
	if opts.Refresh || !run.Status.Terminal() {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		return
	}
	key := e.Keyer.RunKey(m.Fingerprint(), opts)
	_ = e.Cache.Set(ctx, key, data, cache.TTLRun)
	observability.Cache().OnCacheSet(ctx, "run", len(data))
}

// congestionCost builds the placement feedback term from a routing
// result: each movable component is charged its center cell's utilization.
func congestionCost(m *layout.Model, rres *route.Result) func(*layout.Model) float64 {
	if len(rres.CellCongestion) == 0 {
		return nil
	}
	grid := layout.NewGrid(m)
	congestion := rres.CellCongestion
	return func(state *layout.Model) float64 {
		var total float64
		for _, id := range state.MovableIDs() {
			c := state.Component(id)
			total += congestion[grid.Snap(c.CenterX(), c.CenterY())]
		}
		return total
	}
}

// applyPositions clones m with the given placement applied.
func applyPositions(m *layout.Model, positions map[string]place.Position) *layout.Model {
	placed := m.Clone()
	for id, pos := range positions {
		placed.SetPosition(id, pos.X, pos.Y)
	}
	return placed
}

func resIterations(res *place.Result) int {
	if res == nil {
		return 0
	}
	return res.Iterations
}

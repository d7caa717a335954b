package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/objective"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/route"
)

// Status is the lifecycle state of an optimization run.
type Status string

const (
	StatusPending        Status = "pending"
	StatusRunning        Status = "running"
	StatusConverged      Status = "converged"
	StatusMaxIterReached Status = "max_iter_reached"
	StatusInfeasible     Status = "infeasible"
	StatusPartial        Status = "partial"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusPending, StatusRunning:
		return false
	}
	return true
}

// OptimizationRun is the record of one orchestrated placement-and-routing
// run. The engine fills it in as the run progresses; once Status is
// terminal the snapshot fields hold the best state found, whatever the
// termination cause.
type OptimizationRun struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// DesignID names the design being optimized. At most one live run
	// per design is admitted.
	DesignID string `json:"design_id"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Rounds is the number of placement/routing feedback rounds
	// performed.
	Rounds int `json:"rounds"`

	// Score is the combined weighted score of the best snapshot. Lower
	// is better.
	Score float64 `json:"score"`

	// Placement and Routing are the best snapshot's results. Routing is
	// nil when the run never reached the routing phase.
	Placement *place.Result `json:"placement,omitempty"`
	Routing   *route.Result `json:"routing,omitempty"`

	// Breakdown is the normalized objective breakdown of the best
	// snapshot.
	Breakdown objective.CostBreakdown `json:"breakdown"`

	// CacheInfo tracks which phases were served from cache.
	CacheInfo CacheInfo `json:"cache_info"`

	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// totalIterations counts placement iterations across all rounds, so
	// event iteration numbers never go backwards between rounds.
	totalIterations int
}

// CacheInfo tracks cache hits per run phase.
type CacheInfo struct {
	PlacementHit bool `json:"placement_hit"`
	RoutingHit   bool `json:"routing_hit"`
}

// newRun creates a pending run for a design.
func newRun(designID string) *OptimizationRun {
	return &OptimizationRun{
		ID:        uuid.NewString(),
		DesignID:  designID,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
}

package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/route"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildOptionsDefaults(t *testing.T) {
	eo, err := buildOptions("designs/cpu.json", &optimizeOpts{})
	if err != nil {
		t.Fatalf("buildOptions() error: %v", err)
	}
	if eo.DesignID != "cpu" {
		t.Errorf("DesignID = %q, want %q (derived from file name)", eo.DesignID, "cpu")
	}
	if eo.PlacementAlgorithm != "" || eo.RoutingAlgorithm != "" {
		t.Error("algorithms should default to empty (engine picks defaults)")
	}
}

func TestBuildOptionsFromConfig(t *testing.T) {
	path := writeConfig(t, `
design_id = "alu"
placement_algorithm = "force"
routing_algorithm = "maze"
max_rounds = 5
timeout = "45s"

[placement]
seed = 9
max_iterations = 1200

[routing]
max_ripup_rounds = 4
penalty_weight = 2.5

[weights]
wirelength = 1.0
congestion = 8.0
`)

	eo, err := buildOptions("design.json", &optimizeOpts{config: path})
	if err != nil {
		t.Fatalf("buildOptions() error: %v", err)
	}

	if eo.DesignID != "alu" {
		t.Errorf("DesignID = %q, want alu", eo.DesignID)
	}
	if eo.PlacementAlgorithm != place.ForceDirected {
		t.Errorf("PlacementAlgorithm = %q, want force", eo.PlacementAlgorithm)
	}
	if eo.RoutingAlgorithm != route.Maze {
		t.Errorf("RoutingAlgorithm = %q, want maze", eo.RoutingAlgorithm)
	}
	if eo.MaxRounds != 5 {
		t.Errorf("MaxRounds = %d, want 5", eo.MaxRounds)
	}
	if eo.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", eo.Timeout)
	}
	if eo.Placement.Seed != 9 || eo.Placement.MaxIterations != 1200 {
		t.Errorf("Placement = %+v, want seed 9, 1200 iterations", eo.Placement)
	}
	if eo.Routing.MaxRipupRounds != 4 || eo.Routing.PenaltyWeight != 2.5 {
		t.Errorf("Routing = %+v, want 4 rounds, weight 2.5", eo.Routing)
	}
	if eo.Weights.Congestion != 8.0 {
		t.Errorf("Weights.Congestion = %g, want 8", eo.Weights.Congestion)
	}
}

func TestBuildOptionsFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, `
design_id = "alu"
max_rounds = 5

[placement]
seed = 9
`)

	eo, err := buildOptions("design.json", &optimizeOpts{
		config:       path,
		designID:     "alu-v2",
		placementAlg: "annealing",
		seed:         42,
		iterations:   300,
		rounds:       2,
		timeout:      time.Minute,
		refresh:      true,
	})
	if err != nil {
		t.Fatalf("buildOptions() error: %v", err)
	}

	if eo.DesignID != "alu-v2" {
		t.Errorf("DesignID = %q, want alu-v2", eo.DesignID)
	}
	if eo.PlacementAlgorithm != place.SimulatedAnnealing {
		t.Errorf("PlacementAlgorithm = %q, want annealing", eo.PlacementAlgorithm)
	}
	if eo.Placement.Seed != 42 {
		t.Errorf("Placement.Seed = %d, want 42", eo.Placement.Seed)
	}
	if eo.Placement.MaxIterations != 300 {
		t.Errorf("Placement.MaxIterations = %d, want 300", eo.Placement.MaxIterations)
	}
	if eo.MaxRounds != 2 {
		t.Errorf("MaxRounds = %d, want 2", eo.MaxRounds)
	}
	if eo.Timeout != time.Minute {
		t.Errorf("Timeout = %v, want 1m", eo.Timeout)
	}
	if !eo.Refresh {
		t.Error("Refresh should be set")
	}
}

func TestBuildOptionsBadTimeout(t *testing.T) {
	path := writeConfig(t, `timeout = "soon"`)
	if _, err := buildOptions("design.json", &optimizeOpts{config: path}); err == nil {
		t.Error("buildOptions() should reject an unparseable timeout")
	}
}

func TestBuildOptionsMissingConfig(t *testing.T) {
	if _, err := buildOptions("design.json", &optimizeOpts{config: "no-such-file.toml"}); err == nil {
		t.Error("buildOptions() should fail on a missing config file")
	}
}

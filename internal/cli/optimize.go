package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/engine"
	pkgio "github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/io"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/render"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/route"
)

// optimizeOpts holds the command-line flags for the optimize command.
// These options select algorithms, bound the run, and control outputs.
type optimizeOpts struct {
	config       string        // TOML config file with engine options
	output       string        // run JSON output path (stdout if empty)
	svg          string        // optional SVG output path
	designID     string        // override design id (lease key)
	placementAlg string        // placement algorithm: "annealing" or "force"
	routingAlg   string        // routing algorithm: "astar" or "maze"
	seed         int64         // placement PRNG seed
	iterations   int           // placement iteration budget
	rounds       int           // feedback rounds
	timeout      time.Duration // wall-clock budget for the whole run
	refresh      bool          // bypass cached results
	noCache      bool          // disable the cache entirely
	watch        bool          // live progress TUI
}

// optimizeConfig is the TOML config file shape. It mirrors engine.Options
// except that timeout is a Go duration string (e.g. "30s").
type optimizeConfig struct {
	engine.Options
	Timeout string `toml:"timeout"`
}

// optimizeCommand creates the optimize command.
//
// Default behavior:
//   - design id derived from the input file name
//   - annealing placement, A* routing, 3 feedback rounds
//   - results cached under the XDG cache directory
func (c *CLI) optimizeCommand() *cobra.Command {
	var opts optimizeOpts

	cmd := &cobra.Command{
		Use:   "optimize <design.json>",
		Short: "Run placement and routing on a design",
		Long: `Run the full optimization loop on a design: place components, route
nets, and feed routing congestion back into placement until the combined
score converges or the round budget is exhausted.

Examples:
  gscope optimize design.json                      # defaults, run JSON to stdout
  gscope optimize design.json -o run.json --svg out.svg
  gscope optimize design.json --config run.toml --watch
  gscope optimize design.json --placement force --routing maze`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOptimize(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.config, "config", "", "TOML config file with run options")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "run JSON output file (stdout if empty)")
	cmd.Flags().StringVar(&opts.svg, "svg", "", "write an SVG of the optimized layout")
	cmd.Flags().StringVar(&opts.designID, "design-id", "", "design id (defaults to the input file name)")
	cmd.Flags().StringVar(&opts.placementAlg, "placement", "", "placement algorithm: annealing (default), force")
	cmd.Flags().StringVar(&opts.routingAlg, "routing", "", "routing algorithm: astar (default), maze")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "placement PRNG seed")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "placement iteration budget")
	cmd.Flags().IntVar(&opts.rounds, "rounds", 0, "feedback rounds")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "wall-clock budget for the run (e.g. 30s)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached results")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "show live progress")

	return cmd
}

// buildOptions assembles engine.Options from the config file and flag
// overrides. Flags win over the config file; unset values fall through to
// the engine defaults.
func buildOptions(input string, opts *optimizeOpts) (engine.Options, error) {
	var cfg optimizeConfig
	if opts.config != "" {
		if _, err := toml.DecodeFile(opts.config, &cfg); err != nil {
			return engine.Options{}, fmt.Errorf("config %s: %w", opts.config, err)
		}
		if cfg.Timeout != "" {
			d, err := time.ParseDuration(cfg.Timeout)
			if err != nil {
				return engine.Options{}, fmt.Errorf("config %s: timeout: %w", opts.config, err)
			}
			cfg.Options.Timeout = d
		}
	}
	eo := cfg.Options

	if eo.DesignID == "" {
		eo.DesignID = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	if opts.designID != "" {
		eo.DesignID = opts.designID
	}
	if opts.placementAlg != "" {
		eo.PlacementAlgorithm = place.Algorithm(opts.placementAlg)
	}
	if opts.routingAlg != "" {
		eo.RoutingAlgorithm = route.Algorithm(opts.routingAlg)
	}
	if opts.seed != 0 {
		eo.Placement.Seed = opts.seed
	}
	if opts.iterations != 0 {
		eo.Placement.MaxIterations = opts.iterations
	}
	if opts.rounds != 0 {
		eo.MaxRounds = opts.rounds
	}
	if opts.timeout != 0 {
		eo.Timeout = opts.timeout
	}
	if opts.refresh {
		eo.Refresh = true
	}
	return eo, nil
}

// runOptimize loads the design, executes the run, prints a summary, and
// writes the requested outputs.
func (c *CLI) runOptimize(ctx context.Context, input string, opts *optimizeOpts) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Loading %s", input)

	m, err := pkgio.ImportDesign(input)
	if err != nil {
		return err
	}
	logger.Infof("Loaded design: %d components, %d nets", m.ComponentCount(), m.NetCount())

	eo, err := buildOptions(input, opts)
	if err != nil {
		return err
	}
	eo.Logger = c.Logger

	eng, err := c.newEngine(opts.noCache)
	if err != nil {
		return err
	}
	defer eng.Close()

	var run *engine.OptimizationRun
	if opts.watch {
		run, err = watchOptimize(ctx, eng, m, eo)
	} else {
		run, err = spinnerOptimize(ctx, eng, m, eo)
	}
	if err != nil {
		return err
	}

	printRunSummary(run, m)
	return writeOutputs(run, m, opts)
}

// spinnerOptimize runs synchronously behind a spinner.
func spinnerOptimize(ctx context.Context, eng *engine.Engine, m *layout.Model, eo engine.Options) (*engine.OptimizationRun, error) {
	prog := newProgress(loggerFromContext(ctx))
	sp := newSpinner(ctx, "optimizing "+eo.DesignID)
	sp.Start()

	run, err := eng.Optimize(ctx, m, eo)
	sp.Stop()
	if err != nil {
		return nil, err
	}

	prog.done(fmt.Sprintf("Optimized %s in %d rounds", eo.DesignID, run.Rounds))
	return run, nil
}

// watchOptimize enqueues the run and drives the live progress TUI over
// the broker's event stream.
func watchOptimize(ctx context.Context, eng *engine.Engine, m *layout.Model, eo engine.Options) (*engine.OptimizationRun, error) {
	run, task, err := eng.Enqueue(ctx, m, eo, 0)
	if err != nil {
		return nil, err
	}
	events, cancel := eng.Broker.Subscribe(run.ID)
	defer cancel()

	p := tea.NewProgram(NewWatchModel(run, task, events), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	wm := final.(WatchModel)
	if wm.Aborted {
		// The user quit the TUI; wait for the run to wind down so the
		// summary reflects a terminal state.
		if werr := task.Wait(ctx); werr != nil && wm.Err == nil {
			wm.Err = werr
		}
	}
	if wm.Err != nil {
		return nil, wm.Err
	}
	return run, nil
}

// printRunSummary prints the terminal state of a run.
func printRunSummary(run *engine.OptimizationRun, m *layout.Model) {
	switch run.Status {
	case engine.StatusConverged:
		printSuccess("Converged after %d rounds", run.Rounds)
	case engine.StatusMaxIterReached:
		printWarning("Stopped at the iteration budget after %d rounds", run.Rounds)
	case engine.StatusPartial:
		var unrouted int
		if run.Routing != nil {
			unrouted = len(run.Routing.Unrouted)
		}
		printWarning("Partial result: %d nets unrouted", unrouted)
	case engine.StatusInfeasible:
		printError("Design is infeasible")
	case engine.StatusCancelled:
		printWarning("Run cancelled")
	case engine.StatusFailed:
		printError("Run failed: %s", run.Error)
	default:
		printInfo("Run finished: %s", run.Status)
	}

	printStats(m.ComponentCount(), m.NetCount(), run.CacheInfo.PlacementHit)

	printKeyValue("score", fmt.Sprintf("%.4f", run.Score))
	if run.Routing != nil {
		printKeyValue("wirelength", fmt.Sprintf("%d", run.Routing.TotalWirelength()))
		cong := run.Routing.CongestionSummary()
		printKeyValue("congestion", fmt.Sprintf("max %.2f, avg %.2f", cong.Max, cong.Avg))
	}
	printKeyValue("duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String())
}

// writeOutputs writes the run JSON and the optional SVG.
func writeOutputs(run *engine.OptimizationRun, m *layout.Model, opts *optimizeOpts) error {
	out, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := pkgio.WriteRun(run, out); err != nil {
		return err
	}
	if opts.output != "" {
		printFile(opts.output)
	}

	if opts.svg == "" {
		return nil
	}
	placed := m.Clone()
	if run.Placement != nil {
		for id, pos := range run.Placement.Positions {
			placed.SetPosition(id, pos.X, pos.Y)
		}
	}
	svgOpts := []render.SVGOption{render.WithCongestion()}
	if run.Routing != nil {
		svgOpts = append(svgOpts, render.WithRouting(run.Routing))
	}
	if err := os.WriteFile(opts.svg, render.RenderSVG(placed, svgOpts...), 0o644); err != nil {
		return err
	}
	printFile(opts.svg)
	return nil
}

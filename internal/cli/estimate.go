package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/engine"
	pkgio "github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/io"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/place"
)

// estimateOpts holds the command-line flags for the estimate command.
type estimateOpts struct {
	probe      int    // probe length in annealing iterations
	iterations int    // full-run iteration budget to extrapolate to
	seed       int64  // placement PRNG seed
	output     string // JSON output path (pretty-printed to stdout if empty)
	asJSON     bool   // emit JSON instead of the human summary
}

// estimateCommand creates the estimate command. It runs a short annealing
// probe and projects the cost reduction of a full run, so expensive runs
// can be triaged before committing the full budget.
func (c *CLI) estimateCommand() *cobra.Command {
	var opts estimateOpts

	cmd := &cobra.Command{
		Use:   "estimate <design.json>",
		Short: "Probe a design and project the benefit of a full run",
		Long: `Probe a design with a short annealing run and project the cost
reduction a full optimization would achieve. The projection is compared
against a force-directed pass to recommend a placement algorithm.

Examples:
  gscope estimate design.json
  gscope estimate design.json --probe 100 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().IntVar(&opts.probe, "probe", 0, "probe length in iterations")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "full-run iteration budget to project to")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "placement PRNG seed")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "JSON output file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "emit the estimate as JSON")

	return cmd
}

// runEstimate loads the design, runs the probe, and prints the verdict.
func runEstimate(ctx context.Context, input string, opts *estimateOpts) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Loading %s", input)

	m, err := pkgio.ImportDesign(input)
	if err != nil {
		return err
	}

	params := place.DefaultParams()
	if opts.seed != 0 {
		params.Seed = opts.seed
	}
	if opts.iterations != 0 {
		params.MaxIterations = opts.iterations
	}

	est := &engine.Estimator{ProbeIterations: opts.probe}

	sp := newSpinner(ctx, "probing "+input)
	sp.Start()
	result, err := est.Estimate(ctx, m, params)
	sp.Stop()
	if err != nil {
		return err
	}

	if opts.asJSON || opts.output != "" {
		return writeEstimate(result, opts.output)
	}

	printEstimate(result, params)
	return nil
}

// printEstimate prints the human-readable verdict.
func printEstimate(e *engine.Estimate, params place.Params) {
	if e.ProbeIterations == 0 {
		printError("Design is infeasible; no probe could run")
		return
	}

	printSuccess("Probed %d iterations", e.ProbeIterations)
	printKeyValue("algorithm", string(e.Algorithm))
	printKeyValue("initial cost", fmt.Sprintf("%.2f", e.InitialCost))
	printKeyValue("projected", fmt.Sprintf("%.2f over %d iterations", e.ProjectedCost, params.MaxIterations))
	printKeyValue("gain", fmt.Sprintf("%.0f%%", e.ProjectedGain*100))
	printKeyValue("confidence", fmt.Sprintf("%.2f", e.Confidence))

	if e.ProjectedGain < 0.05 {
		printDetail("little headroom; a full run is unlikely to help much")
	}
}

// writeEstimate emits the estimate as indented JSON.
func writeEstimate(e *engine.Estimate, path string) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return err
	}
	if path != "" {
		printFile(path)
	}
	return nil
}

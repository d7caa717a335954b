package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	pkgio "github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/io"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/render"
)

const (
	vizChip    = "chip"    // placed layout with wires and congestion
	vizNetlist = "netlist" // component connectivity graph
)

// renderOpts holds the command-line flags for the render command.
// These options control visualization types, output formats, and overlays.
type renderOpts struct {
	output     string   // output file path (or base path for multiple outputs)
	vizTypes   []string // visualization types: "chip", "netlist"
	formats    []string // output formats: "svg", "dot"
	run        string   // run JSON whose placement and routing to overlay
	grid       bool     // draw the routing grid in chip view
	congestion bool     // shade congested cells in chip view
	detailed   bool     // show component sizes and net weights in netlist view
}

// renderCommand creates the render command for generating visualizations.
// It supports the chip view (placed components, routed wires, congestion)
// and the netlist view (a Graphviz connectivity graph).
//
// Default settings:
//   - type: chip
//   - format: svg
//   - congestion: true when a run is supplied
func (c *CLI) renderCommand() *cobra.Command {
	var vizTypesStr, formatsStr string
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render <design.json>",
		Short: "Render a design to SVG or DOT",
		Long: `Render a design as a chip layout or a netlist graph.

With --run, the chip view overlays the run's placement, routed wires, and
congestion map on the design.

Examples:
  gscope render design.json                          # chip SVG
  gscope render design.json --run run.json -o out.svg
  gscope render design.json -t netlist -f dot --detailed
  gscope render design.json -t chip,netlist -f svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.vizTypes = parseVizTypes(vizTypesStr)
			opts.formats = parseFormats(formatsStr)
			if err := validateVizTypes(opts.vizTypes); err != nil {
				return err
			}
			if err := validateFormats(opts.formats); err != nil {
				return err
			}
			return runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single type/format) or base path (multiple)")
	cmd.Flags().StringVarP(&vizTypesStr, "type", "t", "", "visualization type(s): chip (default), netlist (comma-separated)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot (comma-separated)")
	cmd.Flags().StringVar(&opts.run, "run", "", "run JSON whose placement and routing to overlay")
	cmd.Flags().BoolVar(&opts.grid, "grid", false, "draw the routing grid (chip)")
	cmd.Flags().BoolVar(&opts.congestion, "congestion", false, "shade congested cells (chip)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show component sizes and net weights (netlist)")

	return cmd
}

// parseVizTypes parses the --type flag into a slice of visualization types.
// If empty, defaults to ["chip"].
func parseVizTypes(s string) []string {
	if s == "" {
		return []string{vizChip}
	}
	return strings.Split(s, ",")
}

// parseFormats parses the --format flag into a slice of output formats.
// If empty, defaults to ["svg"].
func parseFormats(s string) []string {
	if s == "" {
		return []string{"svg"}
	}
	return strings.Split(s, ",")
}

// validFormats is the set of supported output formats.
var validFormats = map[string]bool{"svg": true, "dot": true}

// validateFormats checks that all requested formats are valid.
func validateFormats(formats []string) error {
	for _, f := range formats {
		if !validFormats[f] {
			return fmt.Errorf("invalid format: %s (must be 'svg' or 'dot')", f)
		}
	}
	return nil
}

// validateVizTypes checks that all requested visualization types are valid.
func validateVizTypes(types []string) error {
	for _, t := range types {
		if t != vizChip && t != vizNetlist {
			return fmt.Errorf("invalid type: %s (must be 'chip' or 'netlist')", t)
		}
	}
	return nil
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input.
// If output has a format extension (.svg, .dot), it strips that extension.
// This is used when generating multiple files (e.g., design_chip.svg, design_netlist.svg).
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if validFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// renderInput is the loaded design plus the optional run overlay.
type renderInput struct {
	model *layout.Model
	opts  *renderOpts
	svg   []render.SVGOption
}

// runRender loads the design (and run overlay, if any) and renders it to
// the requested type/format combinations.
func runRender(ctx context.Context, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Rendering %s", input)

	m, err := pkgio.ImportDesign(input)
	if err != nil {
		return err
	}
	logger.Infof("Loaded design: %d components, %d nets", m.ComponentCount(), m.NetCount())

	in := &renderInput{model: m, opts: opts}
	if opts.grid {
		in.svg = append(in.svg, render.WithGrid())
	}
	if opts.run != "" {
		run, err := pkgio.ImportRun(opts.run)
		if err != nil {
			return err
		}
		if run.Placement != nil {
			for id, pos := range run.Placement.Positions {
				m.SetPosition(id, pos.X, pos.Y)
			}
		}
		if run.Routing != nil {
			in.svg = append(in.svg, render.WithRouting(run.Routing), render.WithCongestion())
		}
		logger.Debugf("Overlaying run %s (%s)", run.ID, run.Status)
	} else if opts.congestion {
		in.svg = append(in.svg, render.WithCongestion())
	}

	if len(opts.vizTypes) == 1 && len(opts.formats) == 1 {
		return renderSingle(ctx, in, opts.vizTypes[0], opts.formats[0], input)
	}
	return renderMultiple(ctx, in, input)
}

// renderSingle renders a single visualization type and format to a single output file.
// If opts.output is empty, the output path is derived from the input file name.
func renderSingle(ctx context.Context, in *renderInput, vizType, format, input string) error {
	logger := loggerFromContext(ctx)

	data, err := renderViz(ctx, in, vizType, format)
	if errors.Is(err, errSkipFormat) {
		return fmt.Errorf("the %s view has no %s form", vizType, format)
	}
	if err != nil {
		return err
	}
	logger.Debugf("Generated %s: %d bytes", format, len(data))

	outputPath := in.opts.output
	if outputPath == "" {
		outputPath = basePath("", input) + "." + format
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err = out.Write(data); err != nil {
		return err
	}

	logger.Infof("Generated %s", outputPath)
	return nil
}

// renderMultiple renders all requested visualization type/format combinations to separate files.
// File names are derived from basePath and include the visualization type when multiple types are requested.
func renderMultiple(ctx context.Context, in *renderInput, input string) error {
	base := basePath(in.opts.output, input)

	for _, vizType := range in.opts.vizTypes {
		for _, format := range in.opts.formats {
			if err := renderAndWrite(ctx, in, vizType, format, base); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderAndWrite renders a single viz/format combination and writes it to a file.
// If the combination is unsupported (e.g., chip DOT), it is silently skipped with a debug log.
func renderAndWrite(ctx context.Context, in *renderInput, vizType, format, base string) error {
	logger := loggerFromContext(ctx)

	data, err := renderViz(ctx, in, vizType, format)
	if errors.Is(err, errSkipFormat) {
		logger.Debugf("Skipping %s/%s (unsupported combination)", vizType, format)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s/%s: %w", vizType, format, err)
	}

	// Build filename: base_type.format (or base.format if single type)
	var path string
	if len(in.opts.vizTypes) == 1 {
		path = fmt.Sprintf("%s.%s", base, format)
	} else {
		path = fmt.Sprintf("%s_%s.%s", base, vizType, format)
	}

	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.Write(data); err != nil {
		return err
	}

	logger.Infof("Generated %s", path)
	return nil
}

// errSkipFormat is a sentinel error indicating an unsupported format/visualization combination.
var errSkipFormat = fmt.Errorf("skip unsupported format")

// renderViz dispatches to the appropriate renderer based on vizType.
// It returns errSkipFormat for unsupported combinations (chip has no DOT form).
func renderViz(ctx context.Context, in *renderInput, vizType, format string) ([]byte, error) {
	logger := loggerFromContext(ctx)

	switch vizType {
	case vizChip:
		if format != "svg" {
			return nil, errSkipFormat
		}
		logger.Info("Rendering chip SVG")
		return render.RenderSVG(in.model, in.svg...), nil
	case vizNetlist:
		dot := render.ToDOT(in.model, render.DOTOptions{Detailed: in.opts.detailed})
		switch format {
		case "dot":
			return []byte(dot), nil
		case "svg":
			logger.Info("Rendering netlist SVG")
			return render.RenderDOT(ctx, dot)
		default:
			return nil, fmt.Errorf("unknown format: %s", format)
		}
	default:
		return nil, fmt.Errorf("unknown visualization type: %s", vizType)
	}
}

package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
)

// DOTOptions configures netlist DOT rendering.
type DOTOptions struct {
	// Detailed includes component dimensions and net weights in labels.
	Detailed bool
}

// ToDOT converts a model's netlist connectivity to Graphviz DOT format.
// Components become box nodes; each net becomes a diamond hub connected
// to its pins, so multi-pin nets stay readable. The result can be
// rasterized with [RenderDOT].
func ToDOT(m *layout.Model, opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("graph netlist {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	for _, id := range m.ComponentIDs() {
		c := m.Component(id)
		label := c.ID
		if opts.Detailed {
			label = fmt.Sprintf("%s\n%gx%g", c.ID, c.Width, c.Height)
		}
		attrs := fmt.Sprintf("label=%q", label)
		if c.Fixed {
			attrs += ", fillcolor=lightgrey"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", c.ID, attrs)
	}

	buf.WriteString("\n")
	for _, n := range m.Nets() {
		hub := "net_" + n.ID
		label := n.ID
		if opts.Detailed {
			label = fmt.Sprintf("%s (w=%g)", n.ID, n.EffectiveWeight())
		}
		fmt.Fprintf(&buf, "  %q [shape=diamond, fillcolor=lightyellow, fontsize=10, label=%q];\n", hub, label)
		for _, p := range n.Pins {
			fmt.Fprintf(&buf, "  %q -- %q;\n", hub, p.Component)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderDOT rasterizes a DOT graph to SVG using Graphviz.
func RenderDOT(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

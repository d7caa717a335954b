// Package render draws optimized layouts.
//
// Two renderers are provided: a hand-built SVG view of the placed (and
// optionally routed) chip, and a Graphviz DOT view of the netlist
// connectivity. The SVG renderer needs no external tooling; the DOT
// renderer uses go-graphviz to rasterize to SVG.
package render

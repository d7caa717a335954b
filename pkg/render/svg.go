package render

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/route"
)

// scale converts chip units to SVG pixels.
const scale = 10.0

const svgMargin = 20.0

type SVGOption func(*svgRenderer)

type svgRenderer struct {
	routing    *route.Result
	showGrid   bool
	congestion bool
}

// WithRouting overlays routed net paths on the placement.
func WithRouting(r *route.Result) SVGOption {
	return func(s *svgRenderer) { s.routing = r }
}

// WithGrid draws the routing grid lines.
func WithGrid() SVGOption { return func(s *svgRenderer) { s.showGrid = true } }

// WithCongestion shades cells by their routing utilization. Requires
// WithRouting.
func WithCongestion() SVGOption { return func(s *svgRenderer) { s.congestion = true } }

// RenderSVG draws the placed model as a standalone SVG document.
func RenderSVG(m *layout.Model, opts ...SVGOption) []byte {
	var r svgRenderer
	for _, opt := range opts {
		opt(&r)
	}

	width := m.Width*scale + 2*svgMargin
	height := m.Height*scale + 2*svgMargin

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		width, height, width, height)
	fmt.Fprintf(&buf, `  <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="#fcfcfc" stroke="#333" stroke-width="2"/>`+"\n",
		svgMargin, svgMargin, m.Width*scale, m.Height*scale)

	if r.showGrid {
		renderGrid(&buf, m)
	}
	if r.congestion && r.routing != nil {
		renderCongestion(&buf, m, r.routing)
	}
	renderComponents(&buf, m)
	if r.routing != nil {
		renderWires(&buf, m, r.routing)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// px maps a chip x coordinate into the SVG frame.
func px(v float64) float64 { return svgMargin + v*scale }

func renderGrid(buf *bytes.Buffer, m *layout.Model) {
	g := layout.NewGrid(m)
	for c := 1; c < g.Cols; c++ {
		x := px(float64(c) * m.CellSize)
		fmt.Fprintf(buf, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#eee" stroke-width="1"/>`+"\n",
			x, px(0), x, px(m.Height))
	}
	for rw := 1; rw < g.Rows; rw++ {
		y := px(float64(rw) * m.CellSize)
		fmt.Fprintf(buf, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#eee" stroke-width="1"/>`+"\n",
			px(0), y, px(m.Width), y)
	}
}

func renderCongestion(buf *bytes.Buffer, m *layout.Model, rres *route.Result) {
	cells := make([]layout.Cell, 0, len(rres.CellCongestion))
	for c := range rres.CellCongestion {
		cells = append(cells, c)
	}
	// Deterministic output order.
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
	for _, c := range cells {
		u := rres.CellCongestion[c]
		if u <= 0 {
			continue
		}
		if u > 1 {
			u = 1
		}
		fmt.Fprintf(buf, `  <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="rgba(220,50,40,%.2f)"/>`+"\n",
			px(float64(c.X)*m.CellSize), px(float64(c.Y)*m.CellSize),
			m.CellSize*scale, m.CellSize*scale, 0.15+0.5*u)
	}
}

func renderComponents(buf *bytes.Buffer, m *layout.Model) {
	for _, id := range m.ComponentIDs() {
		c := m.Component(id)
		fill := "#cfe3f7"
		if c.Fixed {
			fill = "#d9d9d9"
		}
		fmt.Fprintf(buf, `  <rect id="comp-%s" x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" stroke="#336" stroke-width="1.5" rx="2"/>`+"\n",
			c.ID, px(c.X), px(c.Y), c.Width*scale, c.Height*scale, fill)
		fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" font-size="%.1f" text-anchor="middle" dominant-baseline="middle" fill="#223">%s</text>`+"\n",
			px(c.CenterX()), px(c.CenterY()), min(c.Width, c.Height)*scale*0.3, c.ID)
	}
}

func renderWires(buf *bytes.Buffer, m *layout.Model, rres *route.Result) {
	g := layout.NewGrid(m)
	ids := make([]string, 0, len(rres.Paths))
	for id := range rres.Paths {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		path := rres.Paths[id]
		if len(path) < 2 {
			continue
		}
		var points bytes.Buffer
		prev := path[0]
		start := 0
		flush := func(end int) {
			points.Reset()
			for _, c := range path[start:end] {
				x, y := g.Center(c)
				fmt.Fprintf(&points, "%.1f,%.1f ", px(x), px(y))
			}
			if end-start >= 2 {
				fmt.Fprintf(buf, `  <polyline points="%s" fill="none" stroke="#c4443a" stroke-width="1.5" opacity="0.8"/>`+"\n",
					bytes.TrimSpace(points.Bytes()))
			}
		}
		// Multi-pin paths concatenate tree segments; split the polyline
		// wherever consecutive cells are not grid neighbors.
		for i := 1; i < len(path); i++ {
			if layout.Manhattan(prev, path[i]) != 1 {
				flush(i)
				start = i
			}
			prev = path[i]
		}
		flush(len(path))
	}
}

package layout

// Cell identifies a routing grid cell by column and row.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GridEdge is an undirected edge between two adjacent grid cells, stored in
// canonical order (From < To lexicographically) so that both traversal
// directions map to the same capacity bucket.
type GridEdge struct {
	From Cell `json:"from"`
	To   Cell `json:"to"`
}

// NewGridEdge returns the canonical edge between two adjacent cells.
func NewGridEdge(a, b Cell) GridEdge {
	if b.X < a.X || (b.X == a.X && b.Y < a.Y) {
		a, b = b, a
	}
	return GridEdge{From: a, To: b}
}

// Grid is the routing grid obtained by discretizing the chip bounding box at
// the model's cell size. It is immutable once built; routing state (edge
// usage) lives with the router, not here.
type Grid struct {
	Cols     int
	Rows     int
	CellSize float64
}

// NewGrid builds the routing grid for a model. A chip smaller than one cell
// in either dimension still yields a 1x1 grid.
func NewGrid(m *Model) Grid {
	cols := int(m.Width / m.CellSize)
	rows := int(m.Height / m.CellSize)
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return Grid{Cols: cols, Rows: rows, CellSize: m.CellSize}
}

// Contains reports whether the cell lies on the grid.
func (g Grid) Contains(c Cell) bool {
	return c.X >= 0 && c.X < g.Cols && c.Y >= 0 && c.Y < g.Rows
}

// Snap maps a chip coordinate to the nearest containing grid cell, clamping
// to the grid boundary.
func (g Grid) Snap(x, y float64) Cell {
	cx := int(x / g.CellSize)
	cy := int(y / g.CellSize)
	if cx < 0 {
		cx = 0
	}
	if cx >= g.Cols {
		cx = g.Cols - 1
	}
	if cy < 0 {
		cy = 0
	}
	if cy >= g.Rows {
		cy = g.Rows - 1
	}
	return Cell{X: cx, Y: cy}
}

// Center returns the chip coordinate of a cell's center.
func (g Grid) Center(c Cell) (x, y float64) {
	return (float64(c.X) + 0.5) * g.CellSize, (float64(c.Y) + 0.5) * g.CellSize
}

// Neighbors appends the 4-connected neighbors of c that lie on the grid to
// buf and returns it. Order is fixed (W, E, S, N) so traversals that break
// ties by expansion order stay deterministic.
func (g Grid) Neighbors(c Cell, buf []Cell) []Cell {
	candidates := [4]Cell{
		{X: c.X - 1, Y: c.Y},
		{X: c.X + 1, Y: c.Y},
		{X: c.X, Y: c.Y - 1},
		{X: c.X, Y: c.Y + 1},
	}
	for _, n := range candidates {
		if g.Contains(n) {
			buf = append(buf, n)
		}
	}
	return buf
}

// CellCount returns the number of cells on the grid.
func (g Grid) CellCount() int { return g.Cols * g.Rows }

// Manhattan returns the Manhattan distance between two cells in hops.
func Manhattan(a, b Cell) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

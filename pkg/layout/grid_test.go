package layout

import "testing"

func TestNewGridDimensions(t *testing.T) {
	m, _ := New(40, 20, 2)
	g := NewGrid(m)
	if g.Cols != 20 || g.Rows != 10 {
		t.Errorf("grid = %dx%d, want 20x10", g.Cols, g.Rows)
	}
	if g.CellCount() != 200 {
		t.Errorf("CellCount = %d, want 200", g.CellCount())
	}
}

func TestNewGridMinimumOneCell(t *testing.T) {
	m, _ := New(1, 1, 10)
	g := NewGrid(m)
	if g.Cols != 1 || g.Rows != 1 {
		t.Errorf("tiny chip should yield 1x1 grid, got %dx%d", g.Cols, g.Rows)
	}
}

func TestSnapClamps(t *testing.T) {
	m, _ := New(10, 10, 1)
	g := NewGrid(m)

	if c := g.Snap(-5, 3); c != (Cell{X: 0, Y: 3}) {
		t.Errorf("Snap(-5,3) = %v", c)
	}
	if c := g.Snap(10, 10); c != (Cell{X: 9, Y: 9}) {
		t.Errorf("Snap(10,10) = %v, want clamped to (9,9)", c)
	}
	if c := g.Snap(4.7, 2.1); c != (Cell{X: 4, Y: 2}) {
		t.Errorf("Snap(4.7,2.1) = %v", c)
	}
}

func TestNeighborsAtCorner(t *testing.T) {
	m, _ := New(10, 10, 1)
	g := NewGrid(m)

	n := g.Neighbors(Cell{X: 0, Y: 0}, nil)
	if len(n) != 2 {
		t.Fatalf("corner cell should have 2 neighbors, got %v", n)
	}

	n = g.Neighbors(Cell{X: 5, Y: 5}, nil)
	if len(n) != 4 {
		t.Fatalf("interior cell should have 4 neighbors, got %v", n)
	}
}

func TestGridEdgeCanonical(t *testing.T) {
	a := Cell{X: 3, Y: 4}
	b := Cell{X: 3, Y: 5}
	if NewGridEdge(a, b) != NewGridEdge(b, a) {
		t.Error("edge should be identical regardless of endpoint order")
	}
}

func TestManhattan(t *testing.T) {
	if d := Manhattan(Cell{0, 0}, Cell{9, 9}); d != 18 {
		t.Errorf("Manhattan = %d, want 18", d)
	}
	if d := Manhattan(Cell{5, 2}, Cell{1, 7}); d != 9 {
		t.Errorf("Manhattan = %d, want 9", d)
	}
}

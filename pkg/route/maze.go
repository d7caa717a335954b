package route

import (
	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
)

// mazeSearch is Lee's algorithm: a breadth-first wavefront expanded from
// src until it reaches any cell of the target set. Paths are shortest in
// hop count. Edges already at full capacity are treated as obstacles, so a
// maze route never overflows an edge; when the wavefront cannot reach a
// target the net is reported unroutable instead.
func (st *routeState) mazeSearch(src layout.Cell, targets map[layout.Cell]bool) []layout.Cell {
	if targets[src] {
		return []layout.Cell{src}
	}

	cameFrom := map[layout.Cell]layout.Cell{src: src}
	queue := []layout.Cell{src}
	expanded := 0
	var buf []layout.Cell

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		expanded++
		if expanded > st.params.NodeBudget {
			return nil
		}

		buf = st.g.Neighbors(cur, buf[:0])
		for _, next := range buf {
			if _, seen := cameFrom[next]; seen {
				continue
			}
			if st.usage[layout.NewGridEdge(cur, next)] >= st.capacity {
				continue // edge full, wavefront cannot pass
			}
			cameFrom[next] = cur
			if targets[next] {
				return reconstructMaze(cameFrom, src, next)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// reconstructMaze walks the wavefront parents from goal back to src.
func reconstructMaze(cameFrom map[layout.Cell]layout.Cell, src, goal layout.Cell) []layout.Cell {
	var rev []layout.Cell
	for c := goal; c != src; c = cameFrom[c] {
		rev = append(rev, c)
	}
	rev = append(rev, src)
	path := make([]layout.Cell, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}

package route

import (
	"container/heap"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
)

// astarNode is an entry in the A* open set.
type astarNode struct {
	cell layout.Cell
	g    float64 // accumulated edge cost
	f    float64 // g + heuristic
	seq  int     // insertion order, the deterministic tie-breaker
}

// openSet is a min-heap over f, breaking ties by insertion order so runs
// are reproducible.
type openSet []*astarNode

func (s openSet) Len() int { return len(s) }
func (s openSet) Less(i, j int) bool {
	if s[i].f != s[j].f {
		return s[i].f < s[j].f
	}
	return s[i].seq < s[j].seq
}
func (s openSet) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s *openSet) Push(x any)        { *s = append(*s, x.(*astarNode)) }
func (s *openSet) Pop() any {
	old := *s
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*s = old[:n-1]
	return item
}

// astarSearch finds the cheapest path from src to any cell of the target
// set under congestion-aware edge costs. The heuristic is the minimum
// Manhattan distance to a target, admissible because every edge costs at
// least 1. Returns nil when no path exists within the node budget.
func (st *routeState) astarSearch(src layout.Cell, targets map[layout.Cell]bool) []layout.Cell {
	open := &openSet{}
	heap.Init(open)
	seq := 0
	heap.Push(open, &astarNode{cell: src, g: 0, f: float64(distToSet(src, targets)), seq: seq})

	gScore := map[layout.Cell]float64{src: 0}
	cameFrom := make(map[layout.Cell]layout.Cell)
	closed := make(map[layout.Cell]bool)
	expanded := 0
	var buf []layout.Cell

	for open.Len() > 0 {
		cur := heap.Pop(open).(*astarNode)
		if closed[cur.cell] {
			continue
		}
		if targets[cur.cell] {
			return reconstruct(cameFrom, src, cur.cell)
		}
		closed[cur.cell] = true

		expanded++
		if expanded > st.params.NodeBudget {
			return nil
		}

		buf = st.g.Neighbors(cur.cell, buf[:0])
		for _, next := range buf {
			if closed[next] {
				continue
			}
			g := cur.g + st.edgeCost(cur.cell, next)
			if prev, ok := gScore[next]; ok && g >= prev {
				continue
			}
			gScore[next] = g
			cameFrom[next] = cur.cell
			seq++
			heap.Push(open, &astarNode{
				cell: next,
				g:    g,
				f:    g + float64(distToSet(next, targets)),
				seq:  seq,
			})
		}
	}
	return nil
}

// edgeCost is the congestion-aware traversal cost of one grid edge: unit
// cost plus a superlinear penalty as usage approaches capacity.
func (st *routeState) edgeCost(a, b layout.Cell) float64 {
	used := st.usage[layout.NewGridEdge(a, b)]
	if used == 0 {
		return 1
	}
	r := float64(used) / float64(st.capacity)
	return 1 + st.params.PenaltyWeight*r*r
}

// reconstruct walks the cameFrom chain from goal back to src and returns
// the path in src-to-goal order.
func reconstruct(cameFrom map[layout.Cell]layout.Cell, src, goal layout.Cell) []layout.Cell {
	var rev []layout.Cell
	for c := goal; ; {
		rev = append(rev, c)
		if c == src {
			break
		}
		c = cameFrom[c]
	}
	path := make([]layout.Cell, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}

package route

import (
	"context"
	"sort"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
)

// router is the shared routing engine; the astar flag selects the search
// strategy used for individual point-to-tree connections.
type router struct {
	astar bool
}

// routeState carries the mutable state of one routing run.
type routeState struct {
	m        *layout.Model
	g        layout.Grid
	capacity int
	params   Params
	astar    bool

	// segments holds each routed net's tree as connection-ordered path
	// segments. Edge usage is derived from these.
	segments map[string][][]layout.Cell
	usage    map[layout.GridEdge]int
}

// Route implements Router.
func (r *router) Route(ctx context.Context, m *layout.Model, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateNets(m); err != nil {
		return nil, err
	}
	if p.Ordering == nil {
		p.Ordering = LongestFirst{}
	}

	g := layout.NewGrid(m)
	if p.NodeBudget <= 0 {
		p.NodeBudget = 8 * g.CellCount()
	}

	st := &routeState{
		m:        m,
		g:        g,
		capacity: m.EdgeCapacity(),
		params:   p,
		astar:    r.astar,
		segments: make(map[string][][]layout.Cell),
		usage:    make(map[layout.GridEdge]int),
	}

	order := p.Ordering.Order(m, g, m.Nets())
	unrouted := make(map[string]bool)
	stop := StopCompleted

	// Initial pass.
	for _, id := range order {
		if reason := checkStop(ctx, p, id, 0); reason != "" {
			stop = reason
			unrouted[id] = true
			continue
		}
		if stop != StopCompleted {
			unrouted[id] = true
			continue
		}
		if !st.routeNet(*m.Net(id)) {
			unrouted[id] = true
		}
	}

	// Rip-up-and-reroute.
	rounds := 0
	if stop == StopCompleted {
		rounds, stop = st.ripupLoop(ctx, unrouted)
	}

	// Whatever still violates capacity after the bounded loop is ripped
	// for good: a non-partial result must respect every edge capacity.
	st.enforceCapacity(unrouted)

	res := &Result{
		Paths:          make(map[string][]layout.Cell, len(st.segments)),
		Lengths:        make(map[string]int, len(st.segments)),
		CellCongestion: st.cellCongestion(),
		RipupRounds:    rounds,
		Stop:           stop,
	}
	for id, segs := range st.segments {
		res.Paths[id] = flatten(segs)
		res.Lengths[id] = wirelength(segs)
	}
	for _, n := range m.Nets() {
		if unrouted[n.ID] {
			res.Unrouted = append(res.Unrouted, n.ID)
		}
	}
	res.Partial = len(res.Unrouted) > 0 || stop != StopCompleted
	return res, nil
}

// checkStop consults the context and the per-net observer. An empty reason
// means the run continues.
func checkStop(ctx context.Context, p Params, netID string, round int) StopReason {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return StopDeadline
		}
		return StopCancelled
	default:
	}
	if p.OnNet != nil && !p.OnNet(netID, round) {
		return StopCancelled
	}
	return ""
}

// routeNet connects all pins of a net into one tree. Returns false when
// any pin cannot be connected; in that case the net's partial tree is
// rolled back so edge usage stays consistent.
func (st *routeState) routeNet(n layout.Net) bool {
	cells := pinCells(st.m, st.g, n)
	switch len(cells) {
	case 0:
		return true
	case 1:
		st.segments[n.ID] = [][]layout.Cell{{cells[0]}}
		return true
	}

	tree := map[layout.Cell]bool{cells[0]: true}
	remaining := append([]layout.Cell(nil), cells[1:]...)
	var segs [][]layout.Cell

	for len(remaining) > 0 {
		// Connect the pin nearest to the current tree next, the
		// incremental MST order.
		bestIdx, bestDist := 0, -1
		for i, c := range remaining {
			d := distToSet(c, tree)
			if bestDist < 0 || d < bestDist {
				bestIdx, bestDist = i, d
			}
		}
		src := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		if tree[src] {
			continue
		}

		var seg []layout.Cell
		if st.astar {
			seg = st.astarSearch(src, tree)
		} else {
			seg = st.mazeSearch(src, tree)
		}
		if seg == nil {
			for _, s := range segs {
				st.addUsage(s, -1)
			}
			return false
		}

		st.addUsage(seg, 1)
		for _, c := range seg {
			tree[c] = true
		}
		segs = append(segs, seg)
	}

	st.segments[n.ID] = segs
	return true
}

// ripNet removes a net's routed tree and releases its edge usage.
func (st *routeState) ripNet(id string) {
	segs, ok := st.segments[id]
	if !ok {
		return
	}
	for _, s := range segs {
		st.addUsage(s, -1)
	}
	delete(st.segments, id)
}

// addUsage adjusts edge usage along a path segment by delta.
func (st *routeState) addUsage(seg []layout.Cell, delta int) {
	for i := 1; i < len(seg); i++ {
		e := layout.NewGridEdge(seg[i-1], seg[i])
		st.usage[e] += delta
		if st.usage[e] <= 0 {
			delete(st.usage, e)
		}
	}
}

// ripupLoop resolves capacity violations by ripping the lowest-criticality
// nets off violated edges and re-routing them with updated congestion
// costs, bounded by MaxRipupRounds. Returns the rounds performed and the
// stop reason.
func (st *routeState) ripupLoop(ctx context.Context, unrouted map[string]bool) (int, StopReason) {
	for round := 1; round <= st.params.MaxRipupRounds; round++ {
		victims := st.selectVictims()
		// Also retry nets that failed earlier: congestion shifts
		// every round.
		for id := range unrouted {
			victims[id] = true
		}
		if len(victims) == 0 {
			return round - 1, StopCompleted
		}

		ids := make([]string, 0, len(victims))
		for id := range victims {
			ids = append(ids, id)
			st.ripNet(id)
			delete(unrouted, id)
		}
		// Re-route the most critical victims first.
		sortByCriticality(st.m, ids)
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}

		for _, id := range ids {
			if reason := checkStop(ctx, st.params, id, round); reason != "" {
				unrouted[id] = true
				for _, rest := range ids {
					if rest != id && st.segments[rest] == nil {
						unrouted[rest] = true
					}
				}
				return round, reason
			}
			if !st.routeNet(*st.m.Net(id)) {
				unrouted[id] = true
			}
		}
	}
	return st.params.MaxRipupRounds, StopCompleted
}

// selectVictims picks, for every over-capacity edge, the lowest-criticality
// nets crossing it until the edge would fit within capacity. Edges are
// visited in canonical coordinate order so the victim set does not depend
// on map iteration order.
func (st *routeState) selectVictims() map[string]bool {
	victims := make(map[string]bool)
	for _, e := range st.overCapacityEdges() {
		excess := st.usage[e] - st.capacity
		users := st.netsOnEdge(e)
		sortByCriticality(st.m, users)
		for i := 0; i < len(users) && excess > 0; i++ {
			// A net already marked for rip-up relieves this edge too.
			victims[users[i]] = true
			excess--
		}
	}
	return victims
}

// overCapacityEdges returns the edges whose usage exceeds capacity, sorted
// by coordinates so callers see a stable order.
func (st *routeState) overCapacityEdges() []layout.GridEdge {
	var edges []layout.GridEdge
	for e, used := range st.usage {
		if used > st.capacity {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From.X != b.From.X {
			return a.From.X < b.From.X
		}
		if a.From.Y != b.From.Y {
			return a.From.Y < b.From.Y
		}
		if a.To.X != b.To.X {
			return a.To.X < b.To.X
		}
		return a.To.Y < b.To.Y
	})
	return edges
}

// netsOnEdge returns the ids of nets whose tree crosses the given edge.
func (st *routeState) netsOnEdge(e layout.GridEdge) []string {
	var ids []string
	for id, segs := range st.segments {
		if segsUseEdge(segs, e) {
			ids = append(ids, id)
		}
	}
	return ids
}

// enforceCapacity rips nets off any edge still over capacity after the
// bounded loop, lowest criticality first, adding them to unrouted. This
// upholds the invariant that routed wires never exceed capacity.
func (st *routeState) enforceCapacity(unrouted map[string]bool) {
	for {
		edges := st.overCapacityEdges()
		if len(edges) == 0 {
			return
		}
		users := st.netsOnEdge(edges[0])
		if len(users) == 0 {
			return
		}
		sortByCriticality(st.m, users)
		st.ripNet(users[0])
		unrouted[users[0]] = true
	}
}

// cellCongestion builds the per-cell utilization map: each cell reports the
// maximum usage/capacity over its incident edges.
func (st *routeState) cellCongestion() map[layout.Cell]float64 {
	cong := make(map[layout.Cell]float64)
	for e, used := range st.usage {
		u := float64(used) / float64(st.capacity)
		if u > cong[e.From] {
			cong[e.From] = u
		}
		if u > cong[e.To] {
			cong[e.To] = u
		}
	}
	return cong
}

// distToSet returns the minimum Manhattan distance from c to any cell in
// the set.
func distToSet(c layout.Cell, set map[layout.Cell]bool) int {
	best := -1
	for t := range set {
		d := layout.Manhattan(c, t)
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// segsUseEdge reports whether any segment crosses the edge.
func segsUseEdge(segs [][]layout.Cell, e layout.GridEdge) bool {
	for _, s := range segs {
		for i := 1; i < len(s); i++ {
			if layout.NewGridEdge(s[i-1], s[i]) == e {
				return true
			}
		}
	}
	return false
}

// flatten concatenates tree segments into the result's ordered cell path.
func flatten(segs [][]layout.Cell) []layout.Cell {
	var path []layout.Cell
	for _, s := range segs {
		path = append(path, s...)
	}
	return path
}

// wirelength sums segment hop counts.
func wirelength(segs [][]layout.Cell) int {
	var total int
	for _, s := range segs {
		if len(s) > 1 {
			total += len(s) - 1
		}
	}
	return total
}

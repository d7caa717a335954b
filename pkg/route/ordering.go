package route

import (
	"sort"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
)

// OrderingPolicy decides the order in which nets are routed during the
// initial pass. Routing order matters: earlier nets see an emptier grid.
// The source material leaves this order unspecified, so it is a pluggable
// policy with longest-first as the stated default.
type OrderingPolicy interface {
	// Order returns the ids of the given nets in processing order.
	Order(m *layout.Model, g layout.Grid, nets []layout.Net) []string
}

// LongestFirst orders nets by descending Manhattan span, so the nets with
// the least routing freedom claim their corridors first. Ties break by
// declaration order.
type LongestFirst struct{}

// Order implements OrderingPolicy.
func (LongestFirst) Order(m *layout.Model, g layout.Grid, nets []layout.Net) []string {
	type entry struct {
		id   string
		span int
		pos  int
	}
	entries := make([]entry, len(nets))
	for i, n := range nets {
		entries[i] = entry{id: n.ID, span: netSpan(m, g, n), pos: i}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].span != entries[j].span {
			return entries[i].span > entries[j].span
		}
		return entries[i].pos < entries[j].pos
	})
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// DeclarationOrder routes nets exactly in model declaration order. Useful
// as a baseline and for reproducing externally specified orderings.
type DeclarationOrder struct{}

// Order implements OrderingPolicy.
func (DeclarationOrder) Order(_ *layout.Model, _ layout.Grid, nets []layout.Net) []string {
	ids := make([]string, len(nets))
	for i, n := range nets {
		ids[i] = n.ID
	}
	return ids
}

// CriticalFirst orders nets by descending criticality weight, ties broken
// by declaration order.
type CriticalFirst struct{}

// Order implements OrderingPolicy.
func (CriticalFirst) Order(_ *layout.Model, _ layout.Grid, nets []layout.Net) []string {
	type entry struct {
		id     string
		weight float64
		pos    int
	}
	entries := make([]entry, len(nets))
	for i, n := range nets {
		entries[i] = entry{id: n.ID, weight: n.EffectiveWeight(), pos: i}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight > entries[j].weight
		}
		return entries[i].pos < entries[j].pos
	})
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// Package objective computes layout cost metrics: half-perimeter wirelength,
// component overlap, bounding area, and routing congestion.
//
// All metrics are pure functions of a layout.Model (plus a congestion summary
// when routing has run). The orchestrator combines the normalized metrics
// into a single weighted score; the placer reuses the raw HPWL and overlap
// terms inside its annealing cost function.
package objective

import (
	"math"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
)

// Congestion summarizes routing pressure on the grid. Max and Avg are
// utilization ratios (usage/capacity) over all used edges. The zero value
// means "no routing information".
type Congestion struct {
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// CostBreakdown holds the raw objective values for one layout state.
// Congestion fields are zero when no routing result was supplied.
type CostBreakdown struct {
	HPWL           float64 `json:"hpwl"`
	OverlapPenalty float64 `json:"overlap_penalty"`
	Area           float64 `json:"area"`
	CongestionMax  float64 `json:"congestion_max"`
	CongestionAvg  float64 `json:"congestion_avg"`
}

// Evaluate computes the full cost breakdown for a layout. Pass a nil
// congestion summary when routing has not run; the congestion fields are
// then reported as zero.
func Evaluate(m *layout.Model, cong *Congestion) CostBreakdown {
	cb := CostBreakdown{
		HPWL:           HPWL(m),
		OverlapPenalty: OverlapPenalty(m),
		Area:           BoundingArea(m),
	}
	if cong != nil {
		cb.CongestionMax = cong.Max
		cb.CongestionAvg = cong.Avg
	}
	return cb
}

// HPWL returns the criticality-weighted half-perimeter wirelength summed
// over all nets: for each net, (max_x-min_x)+(max_y-min_y) over its pin
// positions, scaled by the net weight. Nets with fewer than two pins
// contribute nothing.
func HPWL(m *layout.Model) float64 {
	var total float64
	for _, n := range m.Nets() {
		if len(n.Pins) < 2 {
			continue
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, p := range n.Pins {
			x, y, ok := m.PinPosition(p)
			if !ok {
				continue
			}
			minX = math.Min(minX, x)
			maxX = math.Max(maxX, x)
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
		if math.IsInf(minX, 1) {
			continue
		}
		total += n.EffectiveWeight() * ((maxX - minX) + (maxY - minY))
	}
	return total
}

// OverlapPenalty returns the summed pairwise rectangle-intersection area
// between components, skipping pairs where both are fixed (those overlaps
// are the caller's responsibility and the placer cannot resolve them).
// Zero means the placement is overlap-free.
func OverlapPenalty(m *layout.Model) float64 {
	ids := m.ComponentIDs()
	var total float64
	for i := 0; i < len(ids); i++ {
		a := m.Component(ids[i])
		for j := i + 1; j < len(ids); j++ {
			b := m.Component(ids[j])
			if a.Fixed && b.Fixed {
				continue
			}
			total += intersectionArea(a, b)
		}
	}
	return total
}

// intersectionArea returns the overlapping area of two components.
func intersectionArea(a, b *layout.Component) float64 {
	w := math.Min(a.X+a.Width, b.X+b.Width) - math.Max(a.X, b.X)
	h := math.Min(a.Y+a.Height, b.Y+b.Height) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// OutOfBoundsPenalty returns the summed area by which components protrude
// beyond the chip bounding box.
func OutOfBoundsPenalty(m *layout.Model) float64 {
	var total float64
	for _, id := range m.ComponentIDs() {
		c := m.Component(id)
		inW := math.Min(c.X+c.Width, m.Width) - math.Max(c.X, 0)
		inH := math.Min(c.Y+c.Height, m.Height) - math.Max(c.Y, 0)
		inside := 0.0
		if inW > 0 && inH > 0 {
			inside = inW * inH
		}
		total += c.Area() - inside
	}
	return total
}

// BoundingArea returns the area of the smallest axis-aligned rectangle
// enclosing all component extents. An empty model has zero area.
func BoundingArea(m *layout.Model) float64 {
	ids := m.ComponentIDs()
	if len(ids) == 0 {
		return 0
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, id := range ids {
		c := m.Component(id)
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X+c.Width)
		maxY = math.Max(maxY, c.Y+c.Height)
	}
	return (maxX - minX) * (maxY - minY)
}

// Normalize divides each metric by a reference scale derived from the model
// so that weights are comparable across designs of different sizes:
//
//   - HPWL by the chip half-perimeter times the net count
//   - overlap by the total component area
//   - area by the chip area
//   - congestion values are already ratios and pass through unchanged
func (cb CostBreakdown) Normalize(m *layout.Model) CostBreakdown {
	hpwlScale := (m.Width + m.Height) * math.Max(1, float64(m.NetCount()))
	overlapScale := math.Max(1e-9, m.TotalComponentArea())
	areaScale := math.Max(1e-9, m.ChipArea())
	return CostBreakdown{
		HPWL:           cb.HPWL / hpwlScale,
		OverlapPenalty: cb.OverlapPenalty / overlapScale,
		Area:           cb.Area / areaScale,
		CongestionMax:  cb.CongestionMax,
		CongestionAvg:  cb.CongestionAvg,
	}
}

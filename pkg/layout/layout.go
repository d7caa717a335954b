// Package layout defines the chip layout data model consumed by the
// placement, routing, and orchestration packages.
//
// A Model holds components (rectangular cells with a position), nets
// (weighted pin groups connecting components), the chip bounding box, and
// the routing grid parameters. Models are supplied by the caller and treated
// as immutable inputs: optimizers work on snapshots produced by Clone, never
// on the caller's Model.
//
// The zero value of Model is not usable - use New to create a valid instance.
package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
)

// DefaultNetWeight is the criticality weight assigned to nets that do not
// specify one. Higher weights make a net's wirelength count for more in the
// HPWL objective and protect it from rip-up during routing.
const DefaultNetWeight = 1.0

// Component is a rectangular cell placed on the chip. Position refers to the
// lower-left corner. Fixed components are never moved by the placer.
type Component struct {
	ID     string  `json:"id"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Fixed  bool    `json:"fixed,omitempty"`
}

// Area returns the component's footprint area.
func (c Component) Area() float64 { return c.Width * c.Height }

// CenterX returns the x coordinate of the component center.
func (c Component) CenterX() float64 { return c.X + c.Width/2 }

// CenterY returns the y coordinate of the component center.
func (c Component) CenterY() float64 { return c.Y + c.Height/2 }

// Pin references a connection point on a component, as an offset from the
// component's lower-left corner.
type Pin struct {
	Component string  `json:"component"`
	DX        float64 `json:"dx,omitempty"`
	DY        float64 `json:"dy,omitempty"`
}

// Net is a weighted group of pins that must be electrically connected.
// Net order within a Model is significant: it fixes the deterministic
// baseline processing order for routing.
type Net struct {
	ID     string  `json:"id"`
	Pins   []Pin   `json:"pins"`
	Weight float64 `json:"weight,omitempty"`
}

// EffectiveWeight returns the net's criticality weight, applying
// DefaultNetWeight when unset.
func (n Net) EffectiveWeight() float64 {
	if n.Weight <= 0 {
		return DefaultNetWeight
	}
	return n.Weight
}

// Model is the layout data model: components, nets, chip bounding box, and
// routing grid parameters.
//
// Model is not safe for concurrent mutation. Once handed to the engine it
// must not be modified; the engine only reads it and works on clones.
type Model struct {
	// Chip bounding box. All component extents must lie within
	// [0,Width] x [0,Height].
	Width  float64
	Height float64

	// CellSize is the routing grid resolution. The chip is discretized
	// into cells of this size for routing.
	CellSize float64

	// Capacity is the uniform per-edge routing capacity of the grid.
	// Zero means DefaultCapacity.
	Capacity int

	components map[string]*Component
	nets       []Net
}

// DefaultCapacity is the per-edge routing capacity used when a Model does
// not override it.
const DefaultCapacity = 1

// New creates an empty Model with the given chip dimensions and grid
// resolution. Dimensions and cell size must be positive.
func New(width, height, cellSize float64) (*Model, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "chip dimensions must be positive, got %gx%g", width, height)
	}
	if cellSize <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "grid cell size must be positive, got %g", cellSize)
	}
	return &Model{
		Width:      width,
		Height:     height,
		CellSize:   cellSize,
		components: make(map[string]*Component),
	}, nil
}

// AddComponent adds a component to the model. The ID must be unique and
// dimensions positive.
func (m *Model) AddComponent(c Component) error {
	if c.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "component id must not be empty")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "component %q dimensions must be positive, got %gx%g", c.ID, c.Width, c.Height)
	}
	if _, ok := m.components[c.ID]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate component id %q", c.ID)
	}
	cc := c
	m.components[c.ID] = &cc
	return nil
}

// AddNet appends a net to the model. Every pin must reference an existing
// component; nets need at least two pins to be routable but single-pin nets
// are accepted (they contribute zero wirelength).
func (m *Model) AddNet(n Net) error {
	if n.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "net id must not be empty")
	}
	for _, existing := range m.nets {
		if existing.ID == n.ID {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate net id %q", n.ID)
		}
	}
	for _, p := range n.Pins {
		if _, ok := m.components[p.Component]; !ok {
			return errors.New(errors.ErrCodeInvalidInput, "net %q references unknown component %q", n.ID, p.Component)
		}
	}
	pins := make([]Pin, len(n.Pins))
	copy(pins, n.Pins)
	n.Pins = pins
	m.nets = append(m.nets, n)
	return nil
}

// Component returns the component with the given id, or nil.
func (m *Model) Component(id string) *Component {
	return m.components[id]
}

// ComponentIDs returns all component ids in sorted order. Sorting makes
// iteration deterministic regardless of insertion order.
func (m *Model) ComponentIDs() []string {
	ids := make([]string, 0, len(m.components))
	for id := range m.components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MovableIDs returns the sorted ids of all non-fixed components.
func (m *Model) MovableIDs() []string {
	ids := make([]string, 0, len(m.components))
	for id, c := range m.components {
		if !c.Fixed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Nets returns the model's nets in declaration order. The returned slice
// must not be modified.
func (m *Model) Nets() []Net { return m.nets }

// Net returns the net with the given id, or nil.
func (m *Model) Net(id string) *Net {
	for i := range m.nets {
		if m.nets[i].ID == id {
			return &m.nets[i]
		}
	}
	return nil
}

// ComponentCount returns the number of components.
func (m *Model) ComponentCount() int { return len(m.components) }

// NetCount returns the number of nets.
func (m *Model) NetCount() int { return len(m.nets) }

// EdgeCapacity returns the per-edge routing capacity, applying
// DefaultCapacity when unset.
func (m *Model) EdgeCapacity() int {
	if m.Capacity <= 0 {
		return DefaultCapacity
	}
	return m.Capacity
}

// TotalComponentArea returns the sum of all component areas. This is the
// reference scale used to normalize objective values, and the quantity
// compared against the chip area for the feasibility pre-check.
func (m *Model) TotalComponentArea() float64 {
	var total float64
	for _, c := range m.components {
		total += c.Area()
	}
	return total
}

// ChipArea returns the area of the chip bounding box.
func (m *Model) ChipArea() float64 { return m.Width * m.Height }

// PinPosition returns the absolute position of a pin given the current
// position of its owning component. The second return is false when the pin
// references an unknown component.
func (m *Model) PinPosition(p Pin) (x, y float64, ok bool) {
	c, found := m.components[p.Component]
	if !found {
		return 0, 0, false
	}
	return c.X + p.DX, c.Y + p.DY, true
}

// SetPosition moves a component. It is the only mutation optimizers perform
// on their working snapshots. Fixed components are left untouched.
func (m *Model) SetPosition(id string, x, y float64) {
	if c, ok := m.components[id]; ok && !c.Fixed {
		c.X = x
		c.Y = y
	}
}

// Clone returns a deep copy of the model. Optimizers clone the caller's
// model once per run and mutate only the clone.
func (m *Model) Clone() *Model {
	cp := &Model{
		Width:      m.Width,
		Height:     m.Height,
		CellSize:   m.CellSize,
		Capacity:   m.Capacity,
		components: make(map[string]*Component, len(m.components)),
		nets:       make([]Net, len(m.nets)),
	}
	for id, c := range m.components {
		cc := *c
		cp.components[id] = &cc
	}
	for i, n := range m.nets {
		pins := make([]Pin, len(n.Pins))
		copy(pins, n.Pins)
		n.Pins = pins
		cp.nets[i] = n
	}
	return cp
}

// Validate checks model invariants: positive dimensions, components within
// the chip bounding box, and nets referencing known components with pins
// inside the chip. It returns the first violation found as an
// INVALID_INPUT error.
func (m *Model) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "chip dimensions must be positive, got %gx%g", m.Width, m.Height)
	}
	if m.CellSize <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "grid cell size must be positive, got %g", m.CellSize)
	}
	for _, id := range m.ComponentIDs() {
		c := m.components[id]
		if c.Width <= 0 || c.Height <= 0 {
			return errors.New(errors.ErrCodeInvalidInput, "component %q dimensions must be positive", id)
		}
		if c.Width > m.Width || c.Height > m.Height {
			return errors.New(errors.ErrCodeInvalidInput, "component %q (%gx%g) does not fit the %gx%g chip", id, c.Width, c.Height, m.Width, m.Height)
		}
	}
	for _, n := range m.nets {
		for _, p := range n.Pins {
			c, ok := m.components[p.Component]
			if !ok {
				return errors.New(errors.ErrCodeInvalidInput, "net %q references unknown component %q", n.ID, p.Component)
			}
			if p.DX < 0 || p.DY < 0 || p.DX > c.Width || p.DY > c.Height {
				return errors.New(errors.ErrCodeInvalidInput, "net %q pin offset (%g,%g) lies outside component %q", n.ID, p.DX, p.DY, p.Component)
			}
		}
	}
	return nil
}

// InBounds reports whether the component, at its current position, lies
// fully inside the chip bounding box.
func (m *Model) InBounds(c *Component) bool {
	return c.X >= 0 && c.Y >= 0 && c.X+c.Width <= m.Width && c.Y+c.Height <= m.Height
}

// Fingerprint returns a deterministic content hash of the model, used as a
// cache key component. Two models with identical geometry, connectivity, and
// grid parameters hash identically regardless of construction order.
func (m *Model) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "chip:%g,%g cell:%g cap:%d\n", m.Width, m.Height, m.CellSize, m.EdgeCapacity())
	for _, id := range m.ComponentIDs() {
		c := m.components[id]
		fmt.Fprintf(h, "c:%s %g,%g %g,%g f:%t\n", id, c.Width, c.Height, c.X, c.Y, c.Fixed)
	}
	for _, n := range m.nets {
		fmt.Fprintf(h, "n:%s w:%g", n.ID, n.EffectiveWeight())
		for _, p := range n.Pins {
			fmt.Fprintf(h, " %s@%g,%g", p.Component, p.DX, p.DY)
		}
		fmt.Fprintln(h)
	}
	return hex.EncodeToString(h.Sum(nil))
}

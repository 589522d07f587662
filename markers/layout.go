// Package markers holds the registry of fiducial markers placed in the world and matches
// detected marker corners to their known world positions.
package markers

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrInvalidLayout is returned when a marker layout cannot be built.
var ErrInvalidLayout = errors.New("invalid marker layout")

// MarkerSpec describes one square marker lying in the world Z = 0 plane. (X, Y) is its first
// corner and Size its side length, in world units.
type MarkerSpec struct {
	ID   int     `json:"id" mapstructure:"id" jsonschema:"required,minimum=0" jsonschema_description:"marker id"`
	X    float64 `json:"x" mapstructure:"x" jsonschema:"required" jsonschema_description:"x of the first corner"`
	Y    float64 `json:"y" mapstructure:"y" jsonschema:"required" jsonschema_description:"y of the first corner"`
	Size float64 `json:"size" mapstructure:"size" jsonschema:"required" jsonschema_description:"side length, > 0"`
}

// Marker is a registered marker with its world corners.
type Marker struct {
	ID     int
	Size   float64
	Anchor r3.Vector
	// Corners are ordered (x,y), (x+s,y), (x+s,y+s), (x,y+s) to match the detector's corner order.
	Corners [4]r3.Vector
}

func newMarker(spec MarkerSpec) Marker {
	x, y, s := spec.X, spec.Y, spec.Size
	return Marker{
		ID:     spec.ID,
		Size:   s,
		Anchor: r3.Vector{X: x, Y: y},
		Corners: [4]r3.Vector{
			{X: x, Y: y},
			{X: x + s, Y: y},
			{X: x + s, Y: y + s},
			{X: x, Y: y + s},
		},
	}
}

// Layout is an immutable set of markers keyed by id.
type Layout struct {
	markers map[int]Marker
	order   []int
}

func invalidLayout(format string, args ...interface{}) error {
	return errors.Wrap(ErrInvalidLayout, fmt.Sprintf(format, args...))
}

// NewLayout validates the specs and builds a layout.
func NewLayout(specs []MarkerSpec) (*Layout, error) {
	if len(specs) == 0 {
		return nil, invalidLayout("no markers")
	}
	layout := &Layout{
		markers: make(map[int]Marker, len(specs)),
		order:   make([]int, 0, len(specs)),
	}
	for i, spec := range specs {
		if spec.ID < 0 {
			return nil, invalidLayout("marker %d has negative id %d", i, spec.ID)
		}
		if _, ok := layout.markers[spec.ID]; ok {
			return nil, invalidLayout("duplicate marker id %d", spec.ID)
		}
		for _, v := range []float64{spec.X, spec.Y, spec.Size} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, invalidLayout("marker %d has a non-finite value", spec.ID)
			}
		}
		if spec.Size <= 0 {
			return nil, invalidLayout("marker %d has size %v, must be > 0", spec.ID, spec.Size)
		}
		layout.markers[spec.ID] = newMarker(spec)
		layout.order = append(layout.order, spec.ID)
	}
	return layout, nil
}

// Corners returns the world corners of a marker.
func (l *Layout) Corners(id int) ([4]r3.Vector, bool) {
	m, ok := l.markers[id]
	return m.Corners, ok
}

// Anchor returns the first corner of a marker and its size.
func (l *Layout) Anchor(id int) (r3.Vector, float64, bool) {
	m, ok := l.markers[id]
	return m.Anchor, m.Size, ok
}

// Marker returns the full marker record.
func (l *Layout) Marker(id int) (Marker, bool) {
	m, ok := l.markers[id]
	return m, ok
}

// Has reports whether id is registered.
func (l *Layout) Has(id int) bool {
	_, ok := l.markers[id]
	return ok
}

// IDs returns the marker ids in load order.
func (l *Layout) IDs() []int {
	out := make([]int, len(l.order))
	copy(out, l.order)
	return out
}

// Len is the number of markers.
func (l *Layout) Len() int {
	return len(l.order)
}

// Specs returns the layout as specs, in load order.
func (l *Layout) Specs() []MarkerSpec {
	specs := make([]MarkerSpec, 0, len(l.order))
	for _, id := range l.order {
		m := l.markers[id]
		specs = append(specs, MarkerSpec{ID: id, X: m.Anchor.X, Y: m.Anchor.Y, Size: m.Size})
	}
	return specs
}

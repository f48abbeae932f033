// Package pointset defines the immutable input unit of the registration
// pipeline: an ordered collection of 2D localizations together with the
// pixel dimensions of the field of view they were drawn from.
package pointset

import (
	"fmt"

	"github.com/fidlab/quadmatch/internal/geometry"
)

// Set is an ordered sequence of points plus the field-of-view extent.
// The point order is the original localization index and is preserved so
// correspondences can be reported against it. A Set is read-only after
// construction and safe for concurrent readers.
type Set struct {
	points []geometry.Point
	width  float64
	height float64
}

// New constructs a Set from the given points and field-of-view dimensions.
// The points slice is copied. Width and height must be positive because the
// chance-match model divides by the field-of-view area.
func New(points []geometry.Point, width, height float64) (*Set, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("field of view must have positive dimensions, got %gx%g", width, height)
	}
	pts := make([]geometry.Point, len(points))
	copy(pts, points)
	return &Set{points: pts, width: width, height: height}, nil
}

// Len returns the number of points.
func (s *Set) Len() int { return len(s.points) }

// At returns the point with localization index i.
func (s *Set) At(i int) geometry.Point { return s.points[i] }

// Points returns the backing point slice. Callers must treat it as
// read-only; indexes built over a Set borrow this storage directly.
func (s *Set) Points() []geometry.Point { return s.points }

// Width returns the field-of-view width in pixels.
func (s *Set) Width() float64 { return s.width }

// Height returns the field-of-view height in pixels.
func (s *Set) Height() float64 { return s.height }

// FOVArea returns the field-of-view area in square pixels.
func (s *Set) FOVArea() float64 { return s.width * s.height }

// Bounds returns the bounding box of the points themselves, which may be
// smaller than the field of view.
func (s *Set) Bounds() geometry.Box {
	return geometry.BoundingBox(s.points)
}

// OutOfFOV returns the number of points falling outside the declared field
// of view. A non-zero count is a sanity signal for mislabeled inputs, not
// an error.
func (s *Set) OutOfFOV() int {
	fov := geometry.Box{MaxX: s.width, MaxY: s.height}
	n := 0
	for _, p := range s.points {
		if !fov.Contains(p) {
			n++
		}
	}
	return n
}

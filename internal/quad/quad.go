// Package quad builds the invariant 4-point features ("quads") that drive
// registration. A quad pairs two anchor points spanning a configured size
// window with two free points drawn from the first anchor's neighborhood.
// Expressing the free points in the local frame of the anchors yields a
// 4-number code invariant to translation, rotation, and uniform scale, so
// the same physical constellation hashes to the same code in any dataset.
package quad

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned for parameter combinations that are
// rejected before any computation starts.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Params configures quad enumeration. The same values must be used on both
// sides of a comparison or codes will never align.
type Params struct {
	// MinSize is the lower bound on anchor separation in pixels.
	MinSize float64 `mapstructure:"min_size" yaml:"min_size" json:"min_size"`

	// MaxSize is the upper bound on anchor separation in pixels.
	MaxSize float64 `mapstructure:"max_size" yaml:"max_size" json:"max_size"`

	// MaxNeighbors caps how many neighbor candidates per anchor are
	// considered when drawing free points.
	MaxNeighbors int `mapstructure:"max_neighbors" yaml:"max_neighbors" json:"max_neighbors"`
}

// DefaultParams returns the enumeration defaults, sized for bead fields
// in the few-hundred-pixel range. Dense or very large frames usually need
// a tighter size window to keep the quad count manageable.
func DefaultParams() Params {
	return Params{
		MinSize:      20,
		MaxSize:      200,
		MaxNeighbors: 8,
	}
}

// Validate rejects parameter combinations the pipeline cannot run with.
func (p Params) Validate() error {
	if p.MaxNeighbors <= 0 {
		return fmt.Errorf("max neighbors must be positive, got %d: %w", p.MaxNeighbors, ErrInvalidConfiguration)
	}
	if p.MinSize < 0 {
		return fmt.Errorf("min size must not be negative, got %g: %w", p.MinSize, ErrInvalidConfiguration)
	}
	if p.MinSize >= p.MaxSize {
		return fmt.Errorf("min size %g must be below max size %g: %w", p.MinSize, p.MaxSize, ErrInvalidConfiguration)
	}
	return nil
}

// Quad references four distinct points of one set by localization index.
// A and B are the anchors defining the local frame, C and D the free
// points in canonical order.
type Quad struct {
	A int
	B int
	C int
	D int
}

// Code is the invariant descriptor (xc, yc, xd, yd): the free points'
// coordinates in the frame where A is the origin and B is (1, 0). By
// construction xc and xd lie in [0, 1] and the labeling is canonical, so
// identical constellations produce bit-identical codes.
type Code [4]float64

// Row returns the code as a spatial-index row.
func (c Code) Row() []float64 {
	return []float64{c[0], c[1], c[2], c[3]}
}

// CodeRows converts codes into index rows sharing one backing allocation.
func CodeRows(codes []Code) [][]float64 {
	rows := make([][]float64, len(codes))
	backing := make([]float64, 4*len(codes))
	for i, c := range codes {
		row := backing[4*i : 4*i+4 : 4*i+4]
		copy(row, c[:])
		rows[i] = row
	}
	return rows
}

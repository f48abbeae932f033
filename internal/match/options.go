package match

import (
	"fmt"

	"github.com/fidlab/quadmatch/internal/quad"
)

// IndexKind selects the spatial index backing point neighborhoods.
type IndexKind string

const (
	// IndexKDTree is the default k-d tree index.
	IndexKDTree IndexKind = "kdtree"
	// IndexGrid is a uniform-cell hash grid, useful on dense fields.
	IndexGrid IndexKind = "grid"
)

// Options tune the engine beyond the quad parameters.
type Options struct {
	// InlierRadius is the verification radius in reference pixels. A
	// transformed point counts as a correspondence when a reference point
	// lies within this distance.
	InlierRadius float64 `mapstructure:"inlier_radius" yaml:"inlier_radius" json:"inlier_radius"`

	// MinInliers drops hypotheses supported by fewer correspondences.
	MinInliers int `mapstructure:"min_inliers" yaml:"min_inliers" json:"min_inliers"`

	// Workers caps the probe worker goroutines. Zero uses GOMAXPROCS.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`

	// Index picks the spatial index implementation for 2D neighborhoods.
	Index IndexKind `mapstructure:"index" yaml:"index" json:"index"`

	// GridCell is the cell size for IndexGrid. Zero sizes cells from the
	// point density.
	GridCell float64 `mapstructure:"grid_cell" yaml:"grid_cell" json:"grid_cell"`
}

// DefaultOptions returns the engine defaults: 3 px verification radius,
// hypotheses need at least 3 correspondences, k-d tree index.
func DefaultOptions() Options {
	return Options{
		InlierRadius: 3.0,
		MinInliers:   3,
		Index:        IndexKDTree,
	}
}

// Validate rejects option combinations the engine cannot run with.
func (o Options) Validate() error {
	if o.InlierRadius <= 0 {
		return fmt.Errorf("inlier radius must be positive, got %g: %w", o.InlierRadius, quad.ErrInvalidConfiguration)
	}
	if o.MinInliers < 3 {
		return fmt.Errorf("min inliers must be at least 3, got %d: %w", o.MinInliers, quad.ErrInvalidConfiguration)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d: %w", o.Workers, quad.ErrInvalidConfiguration)
	}
	switch o.Index {
	case IndexKDTree, IndexGrid:
	default:
		return fmt.Errorf("unknown index kind %q: %w", o.Index, quad.ErrInvalidConfiguration)
	}
	if o.GridCell < 0 {
		return fmt.Errorf("grid cell must not be negative, got %g: %w", o.GridCell, quad.ErrInvalidConfiguration)
	}
	return nil
}

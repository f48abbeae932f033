// Package spatial provides the nearest-neighbor indexes used by the
// registration pipeline. Indexes are built once over a fixed row set and
// are read-only afterwards, so a single index may serve any number of
// concurrent readers. Two implementations are provided: a KD-tree working
// in any dimension (2D localizations and 4D quad codes) and a uniform grid
// specialized for the 2D case.
package spatial

import (
	"errors"
	"fmt"

	"github.com/fidlab/quadmatch/internal/geometry"
)

// ErrInsufficientPoints is returned when an index is built over fewer than
// two rows. A single row cannot answer a neighbor query meaningfully.
var ErrInsufficientPoints = errors.New("insufficient points")

// Neighbor is one query result: the row index in the original input order
// and its Euclidean distance from the query.
type Neighbor struct {
	Index    int
	Distance float64
}

// Index is the capability contract shared by all spatial indexes.
// Results are sorted nearest-first. Implementations never mutate internal
// state during queries.
type Index interface {
	// KNearest returns up to k rows closest to q. A row equal to q is
	// included with distance zero; callers filter identities themselves.
	KNearest(q []float64, k int) []Neighbor

	// WithinRadius returns every row within Euclidean distance r of q.
	WithinRadius(q []float64, r float64) []Neighbor
}

// PointRows converts 2D points into index rows. The returned rows are
// freshly allocated and safe to hand to an index for its lifetime.
func PointRows(pts []geometry.Point) [][]float64 {
	rows := make([][]float64, len(pts))
	backing := make([]float64, 2*len(pts))
	for i, p := range pts {
		row := backing[2*i : 2*i+2 : 2*i+2]
		row[0] = p.X
		row[1] = p.Y
		rows[i] = row
	}
	return rows
}

func validateRows(rows [][]float64) (int, error) {
	if len(rows) < 2 {
		return 0, fmt.Errorf("spatial index needs at least 2 rows, got %d: %w", len(rows), ErrInsufficientPoints)
	}
	dim := len(rows[0])
	if dim == 0 {
		return 0, errors.New("spatial index rows must have at least one coordinate")
	}
	for i, r := range rows {
		if len(r) != dim {
			return 0, fmt.Errorf("row %d has %d coordinates, expected %d", i, len(r), dim)
		}
	}
	return dim, nil
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

package spatial

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genRows generates a random row set of the given dimension.
func genRows(n, dim int) gopter.Gen {
	return gen.SliceOfN(n*dim, gen.Float64Range(0, 200)).Map(func(flat []float64) [][]float64 {
		rows := make([][]float64, n)
		for i := range rows {
			rows[i] = flat[i*dim : (i+1)*dim]
		}
		return rows
	})
}

// TestKDTreeKNearest_MatchesBruteForce verifies tree answers against a
// linear scan for random 2D scatters.
func TestKDTreeKNearest_MatchesBruteForce(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("k nearest distances equal brute force", prop.ForAll(
		func(rows [][]float64, qx, qy float64, k int) bool {
			tr, err := NewKDTree(rows)
			if err != nil {
				return false
			}
			q := []float64{qx, qy}
			got := tr.KNearest(q, k)
			want := bruteNearest(rows, q, k)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if math.Abs(got[i].Distance-want[i].Distance) > 1e-9 {
					return false
				}
			}
			return true
		},
		genRows(30, 2),
		gen.Float64Range(-50, 250),
		gen.Float64Range(-50, 250),
		gen.IntRange(1, 35),
	))

	properties.TestingRun(t)
}

// TestKDTreeWithinRadius_MatchesBruteForce verifies radius queries against
// a linear scan, including the 4D code-space case.
func TestKDTreeWithinRadius_MatchesBruteForce(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("radius results equal brute force in 4D", prop.ForAll(
		func(rows [][]float64, flatQ []float64, r float64) bool {
			tr, err := NewKDTree(rows)
			if err != nil {
				return false
			}
			got := tr.WithinRadius(flatQ, r)
			want := bruteRadius(rows, flatQ, r)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i].Index != want[i].Index {
					return false
				}
			}
			return true
		},
		genRows(25, 4),
		gen.SliceOfN(4, gen.Float64Range(0, 200)),
		gen.Float64Range(1, 120),
	))

	properties.TestingRun(t)
}

// TestGrid_MatchesKDTree verifies the two 2D implementations are
// interchangeable behind the Index interface.
func TestGrid_MatchesKDTree(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("grid and kd-tree agree on k nearest distances", prop.ForAll(
		func(rows [][]float64, qx, qy, cell float64, k int) bool {
			g, err := NewGrid(rows, cell)
			if err != nil {
				return false
			}
			tr, err := NewKDTree(rows)
			if err != nil {
				return false
			}
			q := []float64{qx, qy}
			a := g.KNearest(q, k)
			b := tr.KNearest(q, k)
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if math.Abs(a[i].Distance-b[i].Distance) > 1e-9 {
					return false
				}
			}
			return true
		},
		genRows(40, 2),
		gen.Float64Range(0, 200),
		gen.Float64Range(0, 200),
		gen.Float64Range(0.5, 60),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}

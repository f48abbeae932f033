package spatial

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fidlab/quadmatch/internal/geometry"
)

func bruteNearest(rows [][]float64, q []float64, k int) []Neighbor {
	out := make([]Neighbor, 0, len(rows))
	for i, r := range rows {
		out = append(out, Neighbor{Index: i, Distance: math.Sqrt(sqDist(q, r))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Index < out[j].Index
	})
	if k < len(out) {
		out = out[:k]
	}
	return out
}

func bruteRadius(rows [][]float64, q []float64, r float64) []Neighbor {
	var out []Neighbor
	for i, row := range rows {
		if d := math.Sqrt(sqDist(q, row)); d <= r {
			out = append(out, Neighbor{Index: i, Distance: d})
		}
	}
	return sortNeighbors(out)
}

func TestNewKDTreeValidation(t *testing.T) {
	_, err := NewKDTree(nil)
	require.ErrorIs(t, err, ErrInsufficientPoints)

	_, err = NewKDTree([][]float64{{1, 2}})
	require.ErrorIs(t, err, ErrInsufficientPoints)

	_, err = NewKDTree([][]float64{{1, 2}, {3}})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInsufficientPoints)

	tr, err := NewKDTree([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	require.Equal(t, 2, tr.Len())
	require.Equal(t, 2, tr.Dim())
}

func TestKDTreeKNearestSmall(t *testing.T) {
	rows := [][]float64{
		{0, 0},
		{1, 0},
		{0, 1},
		{5, 5},
		{-3, 4},
	}
	tr, err := NewKDTree(rows)
	require.NoError(t, err)

	got := tr.KNearest([]float64{0.1, 0.1}, 3)
	require.Len(t, got, 3)
	require.Equal(t, 0, got[0].Index)
	require.InDelta(t, math.Sqrt(0.02), got[0].Distance, 1e-12)
	// Next two are (1,0) and (0,1), equidistant; both must appear.
	require.ElementsMatch(t, []int{1, 2}, []int{got[1].Index, got[2].Index})
}

func TestKDTreeKNearestMatchesBruteForce(t *testing.T) {
	rows := pseudoRandomRows(120, 2, 0x5eed)
	tr, err := NewKDTree(rows)
	require.NoError(t, err)

	queries := pseudoRandomRows(25, 2, 0xfeed)
	for _, q := range queries {
		for _, k := range []int{1, 3, 7, 120, 200} {
			got := tr.KNearest(q, k)
			want := bruteNearest(rows, q, k)
			require.Len(t, got, len(want))
			for i := range got {
				require.InDelta(t, want[i].Distance, got[i].Distance, 1e-9,
					"k=%d result %d", k, i)
			}
		}
	}
}

func TestKDTree4DMatchesBruteForce(t *testing.T) {
	rows := pseudoRandomRows(200, 4, 0xc0de)
	tr, err := NewKDTree(rows)
	require.NoError(t, err)
	require.Equal(t, 4, tr.Dim())

	for _, q := range pseudoRandomRows(10, 4, 0xabcd) {
		got := tr.KNearest(q, 5)
		want := bruteNearest(rows, q, 5)
		for i := range got {
			require.InDelta(t, want[i].Distance, got[i].Distance, 1e-9)
		}

		r := 0.4 * rowSpread(rows)
		require.Equal(t, bruteRadius(rows, q, r), tr.WithinRadius(q, r))
	}
}

func TestKDTreeWithinRadius(t *testing.T) {
	rows := [][]float64{
		{0, 0},
		{2, 0},
		{0, 3},
		{10, 10},
	}
	tr, err := NewKDTree(rows)
	require.NoError(t, err)

	got := tr.WithinRadius([]float64{0, 0}, 3.0)
	require.Equal(t, []Neighbor{
		{Index: 0, Distance: 0},
		{Index: 1, Distance: 2},
		{Index: 2, Distance: 3},
	}, got)

	require.Empty(t, tr.WithinRadius([]float64{100, 100}, 5))
	require.Nil(t, tr.WithinRadius([]float64{0, 0}, 0))
	require.Nil(t, tr.WithinRadius([]float64{0, 0}, -1))
}

func TestKDTreeQueryEdgeCases(t *testing.T) {
	tr, err := NewKDTree([][]float64{{0, 0}, {1, 1}, {2, 2}})
	require.NoError(t, err)

	require.Nil(t, tr.KNearest([]float64{0, 0}, 0))
	require.Nil(t, tr.KNearest([]float64{0, 0}, -5))
	require.Len(t, tr.KNearest([]float64{0, 0}, 99), 3)

	require.Panics(t, func() { tr.KNearest([]float64{1, 2, 3}, 1) })
	require.Panics(t, func() { tr.WithinRadius([]float64{1}, 1) })
}

func TestPointRows(t *testing.T) {
	pts := []geometry.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}
	rows := PointRows(pts)
	require.Equal(t, [][]float64{{1, 2}, {3, 4}}, rows)
}

// pseudoRandomRows produces a deterministic scatter without pulling rand
// into the test, so failures reproduce exactly.
func pseudoRandomRows(n, dim int, seed uint64) [][]float64 {
	rows := make([][]float64, n)
	state := seed
	next := func() float64 {
		state = state*6364136223846793005 + 1442695040888963407
		return float64(state>>11) / float64(1<<53) * 100
	}
	for i := range rows {
		row := make([]float64, dim)
		for d := range row {
			row[d] = next()
		}
		rows[i] = row
	}
	return rows
}

func rowSpread(rows [][]float64) float64 {
	lo, hi := rows[0][0], rows[0][0]
	for _, r := range rows {
		for _, v := range r {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return hi - lo
}

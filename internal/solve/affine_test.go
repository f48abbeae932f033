package solve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fidlab/quadmatch/internal/geometry"
)

func applyAll(t geometry.Transform, pts []geometry.Point) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out
}

func TestAffineExactThreePairs(t *testing.T) {
	want := geometry.Transform{A: 12.5, B: 1.1, C: -0.2, D: -7, E: 0.15, F: 0.95}
	src := []geometry.Point{{X: 0, Y: 0}, {X: 40, Y: 5}, {X: 10, Y: 30}}
	dst := applyAll(want, src)

	got, err := Affine(src, dst)
	require.NoError(t, err)
	require.True(t, want.AlmostEqual(got, 1e-9), "got %+v", got)
}

func TestAffineOverdetermined(t *testing.T) {
	want := geometry.Transform{A: -3, B: 0.8, C: 0.4, D: 22, E: -0.3, F: 1.2}
	src := []geometry.Point{
		{X: 1, Y: 2}, {X: 50, Y: 3}, {X: 17, Y: 44},
		{X: 80, Y: 75}, {X: 5, Y: 60}, {X: 33, Y: 21},
		{X: 64, Y: 12}, {X: 48, Y: 90},
	}
	dst := applyAll(want, src)

	got, err := Affine(src, dst)
	require.NoError(t, err)
	require.True(t, want.AlmostEqual(got, 1e-9), "got %+v", got)
	require.InDelta(t, 0.0, MeanResidual(got, src, dst), 1e-9)
}

func TestAffineIdentity(t *testing.T) {
	src := []geometry.Point{{X: 3, Y: 9}, {X: 27, Y: 1}, {X: 14, Y: 40}, {X: 51, Y: 18}}
	got, err := Affine(src, src)
	require.NoError(t, err)
	require.True(t, geometry.Identity().AlmostEqual(got, 1e-9), "got %+v", got)
}

func TestAffineRejectsCollinear(t *testing.T) {
	tests := []struct {
		name string
		src  []geometry.Point
	}{
		{
			"exact diagonal",
			[]geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}},
		},
		{
			"horizontal line",
			[]geometry.Point{{X: 0, Y: 5}, {X: 10, Y: 5}, {X: 50, Y: 5}},
		},
		{
			"all coincident",
			[]geometry.Point{{X: 7, Y: 7}, {X: 7, Y: 7}, {X: 7, Y: 7}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]geometry.Point, len(tt.src))
			copy(dst, tt.src)
			_, err := Affine(tt.src, dst)
			require.ErrorIs(t, err, ErrDegenerateSystem)
		})
	}
}

func TestAffineRejectsTooFewPairs(t *testing.T) {
	src := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}
	_, err := Affine(src, src)
	require.ErrorIs(t, err, ErrDegenerateSystem)
}

func TestAffineRejectsCountMismatch(t *testing.T) {
	src := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	dst := src[:2]
	_, err := Affine(src, dst)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDegenerateSystem)
}

func TestMeanResidual(t *testing.T) {
	id := geometry.Identity()
	src := []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}
	dst := []geometry.Point{{X: 0, Y: 3}, {X: 10, Y: -3}}
	require.InDelta(t, 3.0, MeanResidual(id, src, dst), 1e-12)
	require.InDelta(t, 0.0, MeanResidual(id, nil, nil), 1e-12)
}

package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidlab/quadmatch/internal/geometry"
)

func TestFieldPointsDeterministic(t *testing.T) {
	a, err := NewField(512, 512, 10, 42).Points(50)
	require.NoError(t, err)
	b, err := NewField(512, 512, 10, 42).Points(50)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewField(512, 512, 10, 43).Points(50)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestFieldPointsRespectSeparationAndBounds(t *testing.T) {
	const minSep = 15.0
	pts, err := NewField(400, 300, minSep, 7).Points(60)
	require.NoError(t, err)
	require.Len(t, pts, 60)

	for i, p := range pts {
		assert.GreaterOrEqual(t, p.X, 0.0)
		assert.Less(t, p.X, 400.0)
		assert.GreaterOrEqual(t, p.Y, 0.0)
		assert.Less(t, p.Y, 300.0)
		for j := i + 1; j < len(pts); j++ {
			assert.GreaterOrEqual(t, p.Distance(pts[j]), minSep)
		}
	}
}

func TestFieldPointsTooDense(t *testing.T) {
	// 100 points with 50px separation cannot fit a 100x100 field.
	_, err := NewField(100, 100, 50, 1).Points(100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too dense")
}

func TestFieldSet(t *testing.T) {
	ps, err := NewField(512, 256, 8, 3).Set(20)
	require.NoError(t, err)
	assert.Equal(t, 20, ps.Len())
	assert.InDelta(t, 512.0, ps.Width(), 0)
	assert.InDelta(t, 256.0, ps.Height(), 0)
}

func TestPerturbIdentityDefaults(t *testing.T) {
	f := NewField(512, 512, 10, 11)
	pts, err := f.Points(30)
	require.NoError(t, err)

	out := f.Perturb(pts, Perturbation{})
	assert.Equal(t, pts, out, "zero perturbation must copy the input unchanged")
}

func TestPerturbTransformAndExtra(t *testing.T) {
	f := NewField(512, 512, 10, 19)
	pts, err := f.Points(30)
	require.NoError(t, err)

	tr := geometry.Translation(5, -3)
	out := f.Perturb(pts, Perturbation{Transform: tr, Extra: 4})
	require.Len(t, out, 34)
	for i, p := range pts {
		assert.InDelta(t, p.X+5, out[i].X, 1e-12)
		assert.InDelta(t, p.Y-3, out[i].Y, 1e-12)
	}
}

func TestPerturbDropRate(t *testing.T) {
	f := NewField(512, 512, 10, 23)
	pts, err := f.Points(40)
	require.NoError(t, err)

	none := f.Perturb(pts, Perturbation{DropRate: 0})
	assert.Len(t, none, 40)

	all := f.Perturb(pts, Perturbation{DropRate: 1, Extra: 3})
	assert.Len(t, all, 3, "drop rate 1 keeps only the extra points")

	some := f.Perturb(pts, Perturbation{DropRate: 0.5})
	assert.Less(t, len(some), 40)
	assert.Greater(t, len(some), 0)
}

func TestPerturbShufflePreservesMultiset(t *testing.T) {
	f := NewField(512, 512, 10, 31)
	pts, err := f.Points(25)
	require.NoError(t, err)

	out := f.Perturb(pts, Perturbation{Shuffle: true})
	require.Len(t, out, 25)
	assert.ElementsMatch(t, pts, out)
}

func TestPerturbJitterBounded(t *testing.T) {
	f := NewField(512, 512, 10, 37)
	pts, err := f.Points(25)
	require.NoError(t, err)

	const jitter = 0.5
	out := f.Perturb(pts, Perturbation{Jitter: jitter})
	require.Len(t, out, 25)
	for i := range pts {
		assert.LessOrEqual(t, out[i].Distance(pts[i]), jitter*1.4143)
	}
}

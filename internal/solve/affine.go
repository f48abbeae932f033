// Package solve fits affine transforms to point correspondences by linear
// least squares.
package solve

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/mempool"
)

// ErrDegenerateSystem is returned when a correspondence set cannot
// determine an affine transform: fewer than three pairs, or source points
// that are collinear. Detected before factorization so callers can drop
// the hypothesis and move on.
var ErrDegenerateSystem = errors.New("degenerate system")

// collinearRelEps bounds the height-to-baseline ratio below which a source
// point set is treated as collinear.
const collinearRelEps = 1e-9

// Affine fits the transform t minimizing sum |t(src[i]) - dst[i]|^2 over
// the six coefficients of x' = A + Bx + Cy, y' = D + Ex + Fy. The two
// coordinate systems are independent, so both are stacked into one
// overdetermined design matrix solved by QR.
func Affine(src, dst []geometry.Point) (geometry.Transform, error) {
	if len(src) != len(dst) {
		return geometry.Transform{}, fmt.Errorf("correspondence count mismatch: %d vs %d", len(src), len(dst))
	}
	n := len(src)
	if n < 3 {
		return geometry.Transform{}, fmt.Errorf("need at least 3 correspondences, got %d: %w", n, ErrDegenerateSystem)
	}
	if collinear(src) {
		return geometry.Transform{}, fmt.Errorf("source points are collinear: %w", ErrDegenerateSystem)
	}

	// The solver runs once per candidate hypothesis, so the design matrix
	// and right-hand side borrow pooled backing. QR keeps its own copy of
	// the factorization, which makes the buffers safe to return on exit.
	designData := mempool.GetFloat64(2 * n * 6)
	defer mempool.PutFloat64(designData)
	rhsData := mempool.GetFloat64(2 * n)
	defer mempool.PutFloat64(rhsData)
	for i := range designData {
		designData[i] = 0
	}

	a := mat.NewDense(2*n, 6, designData)
	b := mat.NewVecDense(2*n, rhsData)
	for i := range n {
		x, y := src[i].X, src[i].Y

		a.Set(2*i, 0, 1)
		a.Set(2*i, 1, x)
		a.Set(2*i, 2, y)
		b.SetVec(2*i, dst[i].X)

		a.Set(2*i+1, 3, 1)
		a.Set(2*i+1, 4, x)
		a.Set(2*i+1, 5, y)
		b.SetVec(2*i+1, dst[i].Y)
	}

	var qr mat.QR
	qr.Factorize(a)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return geometry.Transform{}, fmt.Errorf("least squares solve: %w", ErrDegenerateSystem)
	}

	return geometry.Transform{
		A: params.AtVec(0),
		B: params.AtVec(1),
		C: params.AtVec(2),
		D: params.AtVec(3),
		E: params.AtVec(4),
		F: params.AtVec(5),
	}, nil
}

// MeanResidual returns the mean Euclidean distance between t(src[i]) and
// dst[i]. Zero for empty input.
func MeanResidual(t geometry.Transform, src, dst []geometry.Point) float64 {
	if len(src) == 0 || len(src) != len(dst) {
		return 0
	}
	var sum float64
	for i := range src {
		sum += t.Apply(src[i]).Distance(dst[i])
	}
	return sum / float64(len(src))
}

// collinear reports whether the points span no area: it anchors the
// longest baseline from the first point and compares the largest triangle
// height against it.
func collinear(pts []geometry.Point) bool {
	far, baseSq := 0, 0.0
	for i, p := range pts {
		if d := p.DistanceSq(pts[0]); d > baseSq {
			baseSq, far = d, i
		}
	}
	if baseSq == 0 {
		return true
	}
	maxArea := 0.0
	for _, p := range pts {
		if a := math.Abs(geometry.TriangleArea(pts[0], pts[far], p)); a > maxArea {
			maxArea = a
		}
	}
	// TriangleArea is twice the area, which scales as base*height, and
	// baseSq as base^2, so the quotient bounds height/base.
	return maxArea <= collinearRelEps*baseSq
}

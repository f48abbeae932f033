package geometry

import "math"

// Transform is an affine mapping between two pixel coordinate frames:
//
//	x' = A + B*x + C*y
//	y' = D + E*x + F*y
//
// A and D carry the translation, B, C, E, F the linear part.
type Transform struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
	E float64 `json:"e"`
	F float64 `json:"f"`
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{B: 1, F: 1}
}

// Apply maps p through the transform.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.A + t.B*p.X + t.C*p.Y,
		Y: t.D + t.E*p.X + t.F*p.Y,
	}
}

// ApplyAll maps every point through the transform, writing into dst when it
// has sufficient capacity and allocating otherwise. Returns the mapped slice.
func (t Transform) ApplyAll(dst, src []Point) []Point {
	if cap(dst) < len(src) {
		dst = make([]Point, len(src))
	}
	dst = dst[:len(src)]
	for i, p := range src {
		dst[i] = t.Apply(p)
	}
	return dst
}

// Then composes transforms: the result applies t first, then u.
func (t Transform) Then(u Transform) Transform {
	return Transform{
		A: u.A + u.B*t.A + u.C*t.D,
		B: u.B*t.B + u.C*t.E,
		C: u.B*t.C + u.C*t.F,
		D: u.D + u.E*t.A + u.F*t.D,
		E: u.E*t.B + u.F*t.E,
		F: u.E*t.C + u.F*t.F,
	}
}

// Rotation returns a rotation by angle radians about the origin,
// counterclockwise in a y-up frame.
func Rotation(angle float64) Transform {
	sin, cos := math.Sincos(angle)
	return Transform{B: cos, C: -sin, E: sin, F: cos}
}

// Translation returns a translation by (dx, dy).
func Translation(dx, dy float64) Transform {
	return Transform{A: dx, B: 1, D: dy, F: 1}
}

// Scaling returns a uniform scale about the origin.
func Scaling(s float64) Transform {
	return Transform{B: s, F: s}
}

// Similarity composes scale, rotation about (cx, cy), and translation by
// (dx, dy), in that order.
func Similarity(scale, angle, cx, cy, dx, dy float64) Transform {
	return Translation(-cx, -cy).
		Then(Scaling(scale)).
		Then(Rotation(angle)).
		Then(Translation(cx+dx, cy+dy))
}

// Coefficients returns the six coefficients in (A, B, C, D, E, F) order.
func (t Transform) Coefficients() [6]float64 {
	return [6]float64{t.A, t.B, t.C, t.D, t.E, t.F}
}

// Determinant returns the determinant of the linear part. A value near zero
// means the transform collapses the plane and cannot be inverted.
func (t Transform) Determinant() float64 {
	return t.B*t.F - t.C*t.E
}

// Invert returns the inverse transform and true, or the zero transform and
// false when the linear part is singular.
func (t Transform) Invert() (Transform, bool) {
	det := t.Determinant()
	if math.Abs(det) < 1e-12 {
		return Transform{}, false
	}
	inv := Transform{
		B: t.F / det,
		C: -t.C / det,
		E: -t.E / det,
		F: t.B / det,
	}
	inv.A = -(inv.B*t.A + inv.C*t.D)
	inv.D = -(inv.E*t.A + inv.F*t.D)
	return inv, true
}

// AlmostEqual reports whether every coefficient of t and u agrees within tol.
func (t Transform) AlmostEqual(u Transform, tol float64) bool {
	return math.Abs(t.A-u.A) <= tol &&
		math.Abs(t.B-u.B) <= tol &&
		math.Abs(t.C-u.C) <= tol &&
		math.Abs(t.D-u.D) <= tol &&
		math.Abs(t.E-u.E) <= tol &&
		math.Abs(t.F-u.F) <= tol
}

// Package synth generates synthetic bead fields and perturbed copies of
// them for tests and benchmarks.
package synth

import (
	"fmt"
	"math/rand"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/pointset"
)

// maxAttemptsPerPoint bounds rejection sampling so an overfull field
// fails instead of spinning.
const maxAttemptsPerPoint = 1000

// Field generates reproducible point sets inside a fixed field of view.
// Not safe for concurrent use.
type Field struct {
	width  float64
	height float64
	minSep float64
	rng    *rand.Rand
}

// NewField creates a generator for a width by height field whose generated
// points keep at least minSep pixels between each other.
func NewField(width, height, minSep float64, seed int64) *Field {
	return &Field{
		width:  width,
		height: height,
		minSep: minSep,
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // reproducibility beats crypto here
	}
}

// Points places n points uniformly, rejecting candidates closer than the
// minimum separation to an already accepted point.
func (f *Field) Points(n int) ([]geometry.Point, error) {
	pts := make([]geometry.Point, 0, n)
	limit := n * maxAttemptsPerPoint
	for attempts := 0; len(pts) < n; attempts++ {
		if attempts >= limit {
			return nil, fmt.Errorf("placed %d of %d points after %d attempts, field %gx%g too dense for separation %g",
				len(pts), n, attempts, f.width, f.height, f.minSep)
		}
		cand := geometry.Point{X: f.rng.Float64() * f.width, Y: f.rng.Float64() * f.height}
		if f.tooClose(pts, cand) {
			continue
		}
		pts = append(pts, cand)
	}
	return pts, nil
}

// Set wraps Points into a pointset carrying the generator's field of view.
func (f *Field) Set(n int) (*pointset.Set, error) {
	pts, err := f.Points(n)
	if err != nil {
		return nil, err
	}
	return pointset.New(pts, f.width, f.height)
}

func (f *Field) tooClose(pts []geometry.Point, cand geometry.Point) bool {
	for _, p := range pts {
		if p.Distance(cand) < f.minSep {
			return true
		}
	}
	return false
}

// Perturbation describes how a generated field degrades into the other
// side of a match: an overall transform plus acquisition noise.
type Perturbation struct {
	Transform geometry.Transform // applied to every kept point, zero value means identity
	Jitter    float64            // uniform per-axis offset amplitude in pixels
	DropRate  float64            // fraction of points removed at random
	Extra     int                // spurious points added inside the field
	Shuffle   bool               // randomize output order
}

// Perturb derives a degraded copy of pts. Drops happen before the
// transform and extra points are sampled uniformly over the field after
// it, so spurious detections do not follow the transform.
func (f *Field) Perturb(pts []geometry.Point, p Perturbation) []geometry.Point {
	tr := p.Transform
	if tr == (geometry.Transform{}) {
		tr = geometry.Identity()
	}
	out := make([]geometry.Point, 0, len(pts)+p.Extra)
	for _, pt := range pts {
		if p.DropRate > 0 && f.rng.Float64() < p.DropRate {
			continue
		}
		moved := tr.Apply(pt)
		if p.Jitter > 0 {
			moved.X += (f.rng.Float64()*2 - 1) * p.Jitter
			moved.Y += (f.rng.Float64()*2 - 1) * p.Jitter
		}
		out = append(out, moved)
	}
	for range p.Extra {
		out = append(out, geometry.Point{X: f.rng.Float64() * f.width, Y: f.rng.Float64() * f.height})
	}
	if p.Shuffle {
		f.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// PerturbSet wraps Perturb into a pointset carrying the generator's field
// of view.
func (f *Field) PerturbSet(pts []geometry.Point, p Perturbation) (*pointset.Set, error) {
	return pointset.New(f.Perturb(pts, p), f.width, f.height)
}

package quad

import (
	"context"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/pointset"
	"github.com/fidlab/quadmatch/internal/spatial"
)

// coincidentEps is the pixel-space distance below which two points are
// treated as the same localization and the candidate is discarded.
const coincidentEps = 1e-9

// Builder enumerates quads from a point set using its neighbor index.
type Builder struct {
	params Params
}

// NewBuilder validates the parameters and returns a Builder.
func NewBuilder(params Params) (*Builder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Builder{params: params}, nil
}

// Params returns the builder's configuration.
func (b *Builder) Params() Params { return b.params }

// Set is the output of one enumeration pass. Quads[i] produced Codes[i].
type Set struct {
	Quads []Quad
	Codes []Code
	Stats Stats
}

// Stats counts enumeration work for logging and tuning.
type Stats struct {
	AnchorPairs int // ordered pairs whose separation fit the window
	Candidates  int // free-point pairs examined
	Discarded   int // candidates dropped as degenerate or out of bounds
}

// Build enumerates every quad of the set. For each ordered anchor pair
// (a, b) whose separation lies in [MinSize, MaxSize], free-point pairs are
// drawn from a's nearest neighbors. Candidates with coincident points or
// free points projecting outside the unit interval along the anchor axis
// are filtered out rather than reported as errors. The context aborts a
// pathological enumeration early.
func (b *Builder) Build(ctx context.Context, ps *pointset.Set, idx spatial.Index) (*Set, error) {
	pts := ps.Points()
	out := &Set{}
	row := make([]float64, 2)

	for a := range pts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row[0], row[1] = pts[a].X, pts[a].Y

		// Neighbor candidates for free points. Two extra slots absorb a
		// itself and whichever b appears in the list.
		nbrs := idx.KNearest(row, b.params.MaxNeighbors+2)

		for _, bn := range idx.WithinRadius(row, b.params.MaxSize) {
			if bn.Index == a || bn.Distance < b.params.MinSize {
				continue
			}
			out.Stats.AnchorPairs++
			b.buildPair(pts, a, bn.Index, nbrs, out)
		}
	}
	return out, nil
}

// buildPair emits all quads for one ordered anchor pair.
func (b *Builder) buildPair(pts []geometry.Point, a, bi int, nbrs []spatial.Neighbor, out *Set) {
	free := make([]int, 0, b.params.MaxNeighbors)
	for _, n := range nbrs {
		if n.Index == a || n.Index == bi {
			continue
		}
		if len(free) == b.params.MaxNeighbors {
			break
		}
		free = append(free, n.Index)
	}
	if len(free) < 2 {
		return
	}

	frame, ok := newLocalFrame(pts[a], pts[bi])
	if !ok {
		return
	}

	for _, pair := range combin.Combinations(len(free), 2) {
		out.Stats.Candidates++
		c, d := free[pair[0]], free[pair[1]]
		code, swapped, ok := frame.code(pts[a], pts[bi], pts[c], pts[d])
		if !ok {
			out.Stats.Discarded++
			continue
		}
		if swapped {
			c, d = d, c
		}
		out.Quads = append(out.Quads, Quad{A: a, B: bi, C: c, D: d})
		out.Codes = append(out.Codes, code)
	}
}

// localFrame maps pixel coordinates into the frame where the first anchor
// is the origin and the second sits at (1, 0).
type localFrame struct {
	origin geometry.Point
	u      geometry.Point
	invL2  float64
}

func newLocalFrame(a, b geometry.Point) (localFrame, bool) {
	u := b.Sub(a)
	l2 := u.Dot(u)
	if l2 < coincidentEps*coincidentEps {
		return localFrame{}, false
	}
	return localFrame{origin: a, u: u, invL2: 1 / l2}, true
}

func (f localFrame) project(p geometry.Point) (x, y float64) {
	v := p.Sub(f.origin)
	return v.Dot(f.u) * f.invL2, f.u.Cross(v) * f.invL2
}

// code projects the free points, applies the degeneracy and bounds
// filters, and canonicalizes the labeling. The swap flag reports whether
// the canonical order reversed the caller's (c, d) labeling. Identical
// constellations yield bit-identical codes: canonicalization swaps the
// already-computed projections without further arithmetic.
func (f localFrame) code(pa, pb, pc, pd geometry.Point) (Code, bool, bool) {
	if pc.Distance(pa) < coincidentEps || pc.Distance(pb) < coincidentEps ||
		pd.Distance(pa) < coincidentEps || pd.Distance(pb) < coincidentEps ||
		pc.Distance(pd) < coincidentEps {
		return Code{}, false, false
	}

	xc, yc := f.project(pc)
	xd, yd := f.project(pd)
	if xc < 0 || xc > 1 || xd < 0 || xd > 1 {
		return Code{}, false, false
	}

	// The free point with the larger local x is labeled d; equal x breaks
	// the tie on y. This removes the 2-fold labeling ambiguity.
	swapped := xc > xd || (xc == xd && yc > yd)
	if swapped {
		xc, yc, xd, yd = xd, yd, xc, yc
	}
	return Code{xc, yc, xd, yd}, swapped, true
}

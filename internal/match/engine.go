// Package match implements the registration engine. It indexes a
// reference point set by its quad codes and, for any other point set,
// searches the code space for the affine transform that maps the other
// set onto the reference.
package match

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fidlab/quadmatch/internal/common"
	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/mempool"
	"github.com/fidlab/quadmatch/internal/pointset"
	"github.com/fidlab/quadmatch/internal/quad"
	"github.com/fidlab/quadmatch/internal/solve"
	"github.com/fidlab/quadmatch/internal/spatial"
)

// Engine holds a reference point set indexed for repeated matching. It is
// safe for concurrent FindTransform calls once constructed.
type Engine struct {
	opts      Options
	builder   *quad.Builder
	ref       *pointset.Set
	refIndex  spatial.Index
	refSet    *quad.Set
	codeIndex spatial.Index // 4D index over reference codes, nil when too few quads
	chance    float64       // per-point chance probability at InlierRadius
}

// NewEngine indexes the reference set with background context. See
// NewEngineContext.
func NewEngine(ref *pointset.Set, params quad.Params, optFns ...func(*Options)) (*Engine, error) {
	return NewEngineContext(context.Background(), ref, params, optFns...)
}

// NewEngineContext validates the configuration, enumerates the reference
// quads, and builds the code index that FindTransform probes. The context
// bounds the enumeration.
func NewEngineContext(ctx context.Context, ref *pointset.Set, params quad.Params, optFns ...func(*Options)) (*Engine, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	builder, err := quad.NewBuilder(params)
	if err != nil {
		return nil, err
	}
	if ref.Len() < 4 {
		return nil, fmt.Errorf("reference set has %d points, quad generation needs 4: %w",
			ref.Len(), spatial.ErrInsufficientPoints)
	}

	refIndex, err := newPointIndex(ref, opts)
	if err != nil {
		return nil, err
	}
	refSet, err := builder.Build(ctx, ref, refIndex)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:     opts,
		builder:  builder,
		ref:      ref,
		refIndex: refIndex,
		refSet:   refSet,
		chance:   chanceProbability(opts.InlierRadius, ref.Len(), ref.FOVArea()),
	}
	if len(refSet.Codes) >= 2 {
		e.codeIndex, err = spatial.NewKDTree(quad.CodeRows(refSet.Codes))
		if err != nil {
			return nil, err
		}
	} else {
		slog.Warn("reference set produced too few quad codes to index",
			"points", ref.Len(), "quads", len(refSet.Quads))
	}

	slog.Debug("reference indexed",
		"points", ref.Len(),
		"quads", len(refSet.Quads),
		"anchor_pairs", refSet.Stats.AnchorPairs,
		"discarded", refSet.Stats.Discarded)
	return e, nil
}

// Reference returns the engine's reference set.
func (e *Engine) Reference() *pointset.Set { return e.ref }

// ReferenceQuads returns how many quads the reference set produced.
func (e *Engine) ReferenceQuads() int { return len(e.refSet.Quads) }

// Params returns the quad parameters the engine was built with.
func (e *Engine) Params() quad.Params { return e.builder.Params() }

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

// FindTransform matches with background context. See FindTransformContext.
func (e *Engine) FindTransform(other *pointset.Set, tolerance float64) (*Result, error) {
	return e.FindTransformContext(context.Background(), other, tolerance)
}

// FindTransformContext recovers the affine transform mapping other onto
// the reference set. Tolerance is the code-space probe radius. It returns
// ErrNoMatchFound when no candidate pairing survives verification.
func (e *Engine) FindTransformContext(ctx context.Context, other *pointset.Set, tolerance float64) (*Result, error) {
	if tolerance <= 0 {
		return nil, fmt.Errorf("tolerance must be positive, got %g: %w", tolerance, quad.ErrInvalidConfiguration)
	}
	if other.Len() < 4 {
		return nil, fmt.Errorf("other set has %d points, quad generation needs 4: %w",
			other.Len(), spatial.ErrInsufficientPoints)
	}
	if e.codeIndex == nil {
		return nil, fmt.Errorf("reference set produced no indexable quad codes: %w", ErrNoMatchFound)
	}

	sw := common.NewStopwatch()
	otherIndex, err := newPointIndex(other, e.opts)
	if err != nil {
		return nil, err
	}
	otherSet, err := e.builder.Build(ctx, other, otherIndex)
	if err != nil {
		return nil, err
	}
	sw.Lap("index")
	if len(otherSet.Quads) == 0 {
		return nil, fmt.Errorf("other set produced no quad codes: %w", ErrNoMatchFound)
	}

	run := &probeRun{
		engine:    e,
		other:     other,
		otherSet:  otherSet,
		tolerance: tolerance,
	}
	best, counters, err := run.execute(ctx)
	sw.Lap("probe")
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, fmt.Errorf("no hypothesis survived verification (%d candidates, %d degenerate, %d weak): %w",
			counters.candidates, counters.degenerate, counters.weak, ErrNoMatchFound)
	}

	best = e.refine(best, other)
	sw.Lap("refine")

	result := &Result{
		Transform:       best.transform,
		Ratio:           best.ratio,
		Correspondences: best.pairs,
		MeanResidual:    best.residual,
		Stats: Stats{
			RefPoints:   e.ref.Len(),
			OtherPoints: other.Len(),
			RefQuads:    len(e.refSet.Quads),
			OtherQuads:  len(otherSet.Quads),
			Candidates:  counters.candidates,
			Degenerate:  counters.degenerate,
			Weak:        counters.weak,
			Workers:     counters.workers,
			Duration:    sw.Total(),
			Laps:        sw.Laps(),
		},
	}
	slog.Debug("match found",
		"ratio", result.Ratio,
		"inliers", result.Inliers(),
		"mean_residual", result.MeanResidual,
		"candidates", counters.candidates,
		"timings", sw.String())
	return result, nil
}

// verify counts how many transformed points land within the inlier radius
// of a reference point. Returns nil when the hypothesis is weaker than the
// inlier floor. scratch is reused for the transformed points and must hold
// other.Len() entries.
func (e *Engine) verify(tr geometry.Transform, other *pointset.Set, scratch []geometry.Point) *hypothesis {
	transformed := tr.ApplyAll(scratch, other.Points())
	var (
		pairs []Correspondence
		row   [2]float64
		sum   float64
	)
	for j, p := range transformed {
		row[0], row[1] = p.X, p.Y
		nb := e.refIndex.KNearest(row[:], 1)
		if len(nb) == 1 && nb[0].Distance <= e.opts.InlierRadius {
			pairs = append(pairs, Correspondence{Ref: nb[0].Index, Other: j})
			sum += nb[0].Distance
		}
	}
	if len(pairs) < e.opts.MinInliers {
		return nil
	}
	return &hypothesis{
		transform: tr,
		ratio:     logOdds(len(pairs), other.Len(), e.chance),
		pairs:     pairs,
		residual:  sum / float64(len(pairs)),
	}
}

// refine refits the transform over all verified correspondences and
// re-verifies once, so the reported score and pairs describe the refined
// transform. A degenerate or weakened refit keeps the seeded hypothesis.
func (e *Engine) refine(h *hypothesis, other *pointset.Set) *hypothesis {
	src := make([]geometry.Point, len(h.pairs))
	dst := make([]geometry.Point, len(h.pairs))
	for i, c := range h.pairs {
		src[i] = other.At(c.Other)
		dst[i] = e.ref.At(c.Ref)
	}
	tr, err := solve.Affine(src, dst)
	if err != nil {
		return h
	}
	scratch := mempool.GetPoints(other.Len())
	defer mempool.PutPoints(scratch)
	if refined := e.verify(tr, other, scratch); refined != nil {
		return refined
	}
	return h
}

// newPointIndex builds the configured 2D spatial index over a point set.
func newPointIndex(ps *pointset.Set, opts Options) (spatial.Index, error) {
	rows := spatial.PointRows(ps.Points())
	switch opts.Index {
	case IndexGrid:
		cell := opts.GridCell
		if cell <= 0 {
			cell = spatial.AutoCellSize(ps.FOVArea(), ps.Len())
		}
		return spatial.NewGrid(rows, cell)
	default:
		return spatial.NewKDTree(rows)
	}
}

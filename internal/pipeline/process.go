package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fidlab/quadmatch/internal/loader"
	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pointset"
)

// Session holds the reference-side indexes so many moving frames can be
// registered against one reference without rebuilding them.
type Session struct {
	p      *Pipeline
	engine *match.Engine
}

// NewSession enumerates the reference quads and builds their code index.
func (p *Pipeline) NewSession(ctx context.Context, ref *pointset.Set) (*Session, error) {
	opts := p.cfg.Options
	eng, err := match.NewEngineContext(ctx, ref, p.cfg.Params, func(o *match.Options) { *o = opts })
	if err != nil {
		return nil, err
	}
	return &Session{p: p, engine: eng}, nil
}

// Engine exposes the underlying matcher for inspection.
func (s *Session) Engine() *match.Engine { return s.engine }

// Match registers one moving frame onto the session's reference. A
// tolerance of zero falls back to the configured default.
func (s *Session) Match(ctx context.Context, other *pointset.Set, tolerance float64) (*match.Result, error) {
	if tolerance == 0 {
		tolerance = s.p.cfg.Tolerance
	}
	return s.engine.FindTransformContext(ctx, other, tolerance)
}

// MatchSets builds a throwaway session for ref and registers other onto it.
// Callers matching several frames against the same reference should hold a
// Session instead.
func (p *Pipeline) MatchSets(ctx context.Context, ref, other *pointset.Set, tolerance float64) (*match.Result, error) {
	s, err := p.NewSession(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.Match(ctx, other, tolerance)
}

// FileMatch is the outcome of registering one moving frame file onto a
// reference frame file.
type FileMatch struct {
	RefPath   string        `json:"ref"`
	OtherPath string        `json:"other"`
	Result    *match.Result `json:"result"`
	Overlays  []string      `json:"overlays,omitempty"`

	ref   *pointset.Set
	other *pointset.Set
}

// Sets returns the loaded point sets behind the match.
func (fm *FileMatch) Sets() (ref, other *pointset.Set) { return fm.ref, fm.other }

// MatchFiles loads both frame files concurrently, registers the moving one
// onto the reference and renders overlays when enabled. A tolerance of
// zero falls back to the configured default. No-match outcomes surface as
// match.ErrNoMatchFound, like MatchSets.
func (p *Pipeline) MatchFiles(ctx context.Context, refPath, otherPath string, tolerance float64) (*FileMatch, error) {
	var ref, other *pointset.Set
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if ref, err = loader.Load(refPath); err != nil {
			return fmt.Errorf("reference frame: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if other, err = loader.Load(otherPath); err != nil {
			return fmt.Errorf("moving frame: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slog.Debug("frames loaded",
		"ref", refPath, "ref_points", ref.Len(),
		"other", otherPath, "other_points", other.Len())

	res, err := p.MatchSets(ctx, ref, other, tolerance)
	if err != nil {
		return nil, err
	}

	fm := &FileMatch{RefPath: refPath, OtherPath: otherPath, Result: res, ref: ref, other: other}
	if p.renderer != nil {
		fm.Overlays, err = p.renderer.Emit(otherPath, ref, other, res)
		if err != nil {
			return fm, err
		}
	}
	return fm, nil
}

// EmitOverlay renders the configured overlay artifacts for an already
// matched pair. It is a no-op returning nil when overlays are disabled.
func (p *Pipeline) EmitOverlay(name string, ref, other *pointset.Set, res *match.Result) ([]string, error) {
	if p.renderer == nil {
		return nil, nil
	}
	return p.renderer.Emit(name, ref, other, res)
}

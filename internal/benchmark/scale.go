package benchmark

import (
	"context"
	"fmt"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/pointset"
	"github.com/fidlab/quadmatch/internal/synth"
)

// ScaleConfig drives the synthetic sweep.
type ScaleConfig struct {
	// Counts are the bead counts to sweep, each measured separately.
	Counts []int

	// Iterations is how many registrations are timed per count.
	Iterations int

	// Field geometry handed to the generator.
	Width, Height float64
	MinSep        float64
	Seed          int64

	// Degradation applied to the moving frame.
	Jitter   float64
	DropRate float64
	Extra    int

	// Pipeline carries the engine knobs under test.
	Pipeline pipeline.Config
}

// DefaultScaleConfig returns a sweep over typical bead densities.
func DefaultScaleConfig() ScaleConfig {
	return ScaleConfig{
		Counts:     []int{20, 50, 100, 200},
		Iterations: 5,
		Width:      512,
		Height:     512,
		MinSep:     12,
		Seed:       1,
		Jitter:     0.3,
		Pipeline:   pipeline.DefaultConfig(),
	}
}

// movingTransform is the known displacement applied to every synthetic
// moving frame: a slight rotation and scale about the field center plus
// a shift, the regime fiducial drift lives in.
func (cfg ScaleConfig) movingTransform() geometry.Transform {
	return geometry.Similarity(1.005, 0.01, cfg.Width/2, cfg.Height/2, 6, -4)
}

// ScaleResult is the measured cost at one bead count.
type ScaleResult struct {
	Points  int
	Index   Result // reference quad enumeration and code index build
	Match   Result // one full registration per iteration
	Ratio   float64
	Inliers int
}

// String returns a formatted two-line representation.
func (r ScaleResult) String() string {
	if r.Index.Err != nil {
		return fmt.Sprintf("%d points: %v", r.Points, r.Index.Err)
	}
	if r.Match.Err != nil {
		return fmt.Sprintf("%d points: %v", r.Points, r.Match.Err)
	}
	return fmt.Sprintf("%d points: index avg %v, match avg %v (ratio %.1f, %d inliers)",
		r.Points, r.Index.Avg(), r.Match.Avg(), r.Ratio, r.Inliers)
}

// RunScale sweeps the configured bead counts, measuring index build and
// registration separately at each.
func RunScale(ctx context.Context, cfg ScaleConfig) ([]ScaleResult, error) {
	if len(cfg.Counts) == 0 {
		return nil, fmt.Errorf("no point counts to sweep")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1
	}

	pl, err := pipeline.NewBuilder().WithConfig(cfg.Pipeline).Build()
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	results := make([]ScaleResult, 0, len(cfg.Counts))
	for _, n := range cfg.Counts {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		sr, err := benchmarkCount(ctx, pl, cfg, n)
		if err != nil {
			return results, fmt.Errorf("benchmark %d points: %w", n, err)
		}
		results = append(results, sr)
	}
	return results, nil
}

// benchmarkCount measures one bead count.
func benchmarkCount(ctx context.Context, pl *pipeline.Pipeline, cfg ScaleConfig, n int) (ScaleResult, error) {
	ref, moving, err := syntheticPair(cfg, n)
	if err != nil {
		return ScaleResult{}, err
	}

	suite := NewSuite()

	// Index build cost: enumerate reference quads and index their codes.
	var sess *pipeline.Session
	suite.Add(fmt.Sprintf("index_%dpts", n), func() error {
		var err error
		sess, err = pl.NewSession(ctx, ref)
		return err
	})
	indexResult := suite.Run(fmt.Sprintf("index_%dpts", n), cfg.Iterations)
	if indexResult.Err != nil {
		return ScaleResult{Points: n, Index: indexResult}, nil
	}

	// Registration cost against the prebuilt session.
	var last *match.Result
	suite.Add(fmt.Sprintf("match_%dpts", n), func() error {
		var err error
		last, err = sess.Match(ctx, moving, cfg.Pipeline.Tolerance)
		return err
	})
	matchResult := suite.Run(fmt.Sprintf("match_%dpts", n), cfg.Iterations)

	sr := ScaleResult{Points: n, Index: indexResult, Match: matchResult}
	if last != nil {
		sr.Ratio = last.Ratio
		sr.Inliers = last.Inliers()
	}
	return sr, nil
}

// syntheticPair generates a reference frame and its degraded moving copy.
func syntheticPair(cfg ScaleConfig, n int) (ref, moving *pointset.Set, err error) {
	field := synth.NewField(cfg.Width, cfg.Height, cfg.MinSep, cfg.Seed)
	pts, err := field.Points(n)
	if err != nil {
		return nil, nil, fmt.Errorf("generate field: %w", err)
	}
	ref, err = pointset.New(pts, cfg.Width, cfg.Height)
	if err != nil {
		return nil, nil, err
	}
	moving, err = field.PerturbSet(pts, synth.Perturbation{
		Transform: cfg.movingTransform(),
		Jitter:    cfg.Jitter,
		DropRate:  cfg.DropRate,
		Extra:     cfg.Extra,
		Shuffle:   true,
	})
	if err != nil {
		return nil, nil, err
	}
	return ref, moving, nil
}

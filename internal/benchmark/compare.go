package benchmark

import (
	"context"
	"fmt"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/pointset"
)

// IndexComparisonResult compares the two spatial index backends on the
// same field.
type IndexComparisonResult struct {
	Points        int
	KDTree        Result
	Grid          Result
	SpeedupFactor float64 // k-d tree duration over grid duration
}

// String returns a formatted representation of the comparison.
func (r IndexComparisonResult) String() string {
	if r.KDTree.Err != nil {
		return fmt.Sprintf("%d points: kdtree: ERROR - %v", r.Points, r.KDTree.Err)
	}
	if r.Grid.Err != nil {
		return fmt.Sprintf("%d points: grid: ERROR - %v", r.Points, r.Grid.Err)
	}

	faster := "same"
	if r.SpeedupFactor > 1.0 {
		faster = fmt.Sprintf("grid %.2fx faster", r.SpeedupFactor)
	} else if r.SpeedupFactor < 1.0 {
		faster = fmt.Sprintf("grid %.2fx slower", 1.0/r.SpeedupFactor)
	}

	return fmt.Sprintf("%d points: kdtree: %v, grid: %v (%s)",
		r.Points, r.KDTree.Avg(), r.Grid.Avg(), faster)
}

// CompareIndexes benchmarks full registrations with the k-d tree against
// the hash grid at each configured bead count.
func CompareIndexes(ctx context.Context, cfg ScaleConfig) ([]IndexComparisonResult, error) {
	if len(cfg.Counts) == 0 {
		return nil, fmt.Errorf("no point counts to sweep")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1
	}

	results := make([]IndexComparisonResult, 0, len(cfg.Counts))
	for _, n := range cfg.Counts {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		ref, moving, err := syntheticPair(cfg, n)
		if err != nil {
			return results, fmt.Errorf("benchmark %d points: %w", n, err)
		}

		cmp := IndexComparisonResult{Points: n}
		cmp.KDTree, err = benchmarkIndex(ctx, cfg, match.IndexKDTree, n, ref, moving)
		if err != nil {
			return results, err
		}
		cmp.Grid, err = benchmarkIndex(ctx, cfg, match.IndexGrid, n, ref, moving)
		if err != nil {
			return results, err
		}

		if cmp.Grid.Duration > 0 {
			cmp.SpeedupFactor = float64(cmp.KDTree.Duration.Nanoseconds()) /
				float64(cmp.Grid.Duration.Nanoseconds())
		}
		results = append(results, cmp)
	}
	return results, nil
}

// benchmarkIndex times full registrations through one index backend.
func benchmarkIndex(ctx context.Context, cfg ScaleConfig, kind match.IndexKind, n int,
	ref, moving *pointset.Set,
) (Result, error) {
	plCfg := cfg.Pipeline
	plCfg.Options.Index = kind

	pl, err := pipeline.NewBuilder().WithConfig(plCfg).Build()
	if err != nil {
		return Result{}, fmt.Errorf("build %s pipeline: %w", kind, err)
	}

	suite := NewSuite()
	name := fmt.Sprintf("%s_%dpts", kind, n)
	suite.Add(name, func() error {
		_, err := pl.MatchSets(ctx, ref, moving, plCfg.Tolerance)
		return err
	})
	return suite.Run(name, cfg.Iterations), nil
}

// Package batch registers many frame pairs in one run: pair discovery
// from a manifest or directory trees, a worker pool over the pairs,
// text/JSON/CSV reporting, and optional SQLite persistence.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/store"
)

// Run executes a batch registration with the given configuration.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	pairs, err := discoverPairs(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to discover frame pairs: %w", err)
	}
	if len(pairs) == 0 {
		return nil, errors.New("no frame pairs found")
	}
	slog.Debug("batch run starting",
		"pairs", len(pairs),
		"workers", resolveWorkers(cfg.Workers, len(pairs)))

	var progress ProgressCallback
	if cfg.ShowProgress && !cfg.Quiet {
		cb := NewConsoleProgressCallback(os.Stdout, "Registering: ")
		if cfg.ProgressInterval > 0 {
			cb = cb.WithUpdateInterval(cfg.ProgressInterval)
		}
		progress = cb
	}

	pl, err := pipeline.NewBuilder().WithConfig(cfg.Pipeline).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	startTime := time.Now()
	results, err := processPairsParallel(ctx, pl, pairs, cfg, progress)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	if cfg.DBPath != "" {
		if err := persistResults(cfg.DBPath, results); err != nil {
			return nil, err
		}
	}

	summary := Summary{
		Pairs:       len(pairs),
		WorkerCount: resolveWorkers(cfg.Workers, len(pairs)),
		Duration:    duration,
	}
	for _, pr := range results {
		if pr.Failed() {
			summary.Failed++
		} else {
			summary.Processed++
		}
	}

	return &Result{Results: results, Summary: summary}, nil
}

// persistResults inserts every successful pair into the results store.
func persistResults(dbPath string, results []*PairResult) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open results store: %w", err)
	}
	defer s.Close()

	for _, pr := range results {
		if pr.Failed() {
			continue
		}
		if _, err := s.Insert(store.NewRecord(pr.Ref, pr.Other, pr.Result)); err != nil {
			return fmt.Errorf("persist result for %s: %w", pr.Other, err)
		}
	}
	return nil
}

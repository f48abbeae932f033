package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/fidlab/quadmatch/internal/loader"
	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/pointset"
)

// PairResult is the outcome of registering one frame pair.
type PairResult struct {
	Ref      string        `json:"ref"`
	Other    string        `json:"other"`
	Result   *match.Result `json:"result,omitempty"`
	Overlays []string      `json:"overlays,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Failed reports whether the pair errored.
func (p *PairResult) Failed() bool { return p.Error != "" }

// refSession is a reference frame loaded and indexed once, shared by
// every pair that registers against it.
type refSession struct {
	set  *pointset.Set
	sess *pipeline.Session
	err  error
}

// buildRefSessions indexes each distinct reference frame up front so a
// fixed frame matched against a time series is only indexed once. Load
// and index failures are recorded per reference and surface on the pairs
// that use it.
func buildRefSessions(ctx context.Context, pl *pipeline.Pipeline, pairs []Pair) map[string]*refSession {
	sessions := make(map[string]*refSession)
	for _, pair := range pairs {
		if _, ok := sessions[pair.Ref]; ok {
			continue
		}

		rs := &refSession{}
		rs.set, rs.err = loader.Load(pair.Ref)
		if rs.err == nil {
			rs.sess, rs.err = pl.NewSession(ctx, rs.set)
		}
		sessions[pair.Ref] = rs
	}
	return sessions
}

type pairJob struct {
	index int
	pair  Pair
}

type pairOutcome struct {
	index  int
	result *PairResult
	err    error
}

func resolveWorkers(workers, pairs int) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > pairs {
		workers = pairs
	}
	return workers
}

// processPairsParallel registers pairs with a worker pool. Results come
// back in pair order. With ContinueOnError set, pair failures are
// recorded in their PairResult and the run keeps going; otherwise the
// first failure cancels the remaining work and is returned.
func processPairsParallel(ctx context.Context, pl *pipeline.Pipeline, pairs []Pair,
	cfg *Config, progress ProgressCallback,
) ([]*PairResult, error) {
	workers := resolveWorkers(cfg.Workers, len(pairs))

	queue := cfg.QueueSize
	if queue <= 0 || queue > len(pairs) {
		queue = len(pairs)
	}

	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(pairs))
	defer progress.OnComplete()

	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = pl.Config().Tolerance
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessions := buildRefSessions(runCtx, pl, pairs)

	jobs := make(chan pairJob, queue)
	results := make(chan pairOutcome, len(pairs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job, ok := <-jobs:
					if !ok {
						return
					}
					outcome := processPair(runCtx, pl, sessions[job.pair.Ref], job, tolerance)
					select {
					case results <- outcome:
					case <-runCtx.Done():
						return
					}
				case <-runCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, pair := range pairs {
			select {
			case jobs <- pairJob{index: i, pair: pair}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*PairResult, len(pairs))
	var firstErr error
	processed := 0

	for outcome := range results {
		ordered[outcome.index] = outcome.result
		processed++
		progress.OnProgress(processed, len(pairs))

		if outcome.err != nil {
			progress.OnError(outcome.index, outcome.err)
			if firstErr == nil {
				firstErr = fmt.Errorf("pair %s: %w", outcome.result.Other, outcome.err)
			}
			if !cfg.ContinueOnError {
				cancel()
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !cfg.ContinueOnError && firstErr != nil {
		return nil, firstErr
	}

	return ordered, nil
}

// processPair registers a single frame pair against its prebuilt
// reference session.
func processPair(ctx context.Context, pl *pipeline.Pipeline, rs *refSession,
	job pairJob, tolerance float64,
) pairOutcome {
	pr := &PairResult{Ref: job.pair.Ref, Other: job.pair.Other}

	fail := func(err error) pairOutcome {
		slog.Warn("pair registration failed",
			"ref", job.pair.Ref, "other", job.pair.Other, "error", err)
		pr.Error = err.Error()
		return pairOutcome{index: job.index, result: pr, err: err}
	}

	if rs.err != nil {
		return fail(fmt.Errorf("reference frame: %w", rs.err))
	}

	other, err := loader.Load(job.pair.Other)
	if err != nil {
		return fail(fmt.Errorf("moving frame: %w", err))
	}

	res, err := rs.sess.Match(ctx, other, tolerance)
	if err != nil {
		return fail(err)
	}
	pr.Result = res

	overlays, err := pl.EmitOverlay(job.pair.Other, rs.set, other, res)
	if err != nil {
		return fail(fmt.Errorf("render overlay: %w", err))
	}
	pr.Overlays = overlays

	return pairOutcome{index: job.index, result: pr}
}

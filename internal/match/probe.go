package match

import (
	"context"
	"runtime"
	"sync"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/mempool"
	"github.com/fidlab/quadmatch/internal/pointset"
	"github.com/fidlab/quadmatch/internal/quad"
	"github.com/fidlab/quadmatch/internal/solve"
)

// probeRun carries one FindTransform call's state across probe workers.
type probeRun struct {
	engine    *Engine
	other     *pointset.Set
	otherSet  *quad.Set
	tolerance float64
}

// probeCounters aggregates worker outcomes for the caller.
type probeCounters struct {
	candidates int
	degenerate int
	weak       int
	workers    int
}

// workerOutcome is one worker's local best hypothesis plus counters,
// reported when the jobs channel drains.
type workerOutcome struct {
	best       *hypothesis
	candidates int
	degenerate int
	weak       int
}

// execute probes every code of the other set against the reference code
// index. Each worker keeps a local best hypothesis so the hot loop never
// contends on shared state; a final merge picks the global best.
func (r *probeRun) execute(ctx context.Context) (*hypothesis, probeCounters, error) {
	numJobs := len(r.otherSet.Quads)
	workers := r.engine.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > numJobs {
		workers = numJobs
	}

	jobs := make(chan int, numJobs)
	results := make(chan workerOutcome, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go r.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i := range numJobs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	counters := probeCounters{workers: workers}
	var best *hypothesis
	for out := range results {
		counters.candidates += out.candidates
		counters.degenerate += out.degenerate
		counters.weak += out.weak
		best = betterHypothesis(best, out.best)
	}

	if err := ctx.Err(); err != nil {
		return nil, counters, err
	}
	return best, counters, nil
}

// worker consumes quad indices until the jobs channel closes, then reports
// its local best. Cancellation drops the outcome; the caller surfaces the
// context error instead.
func (r *probeRun) worker(ctx context.Context, jobs <-chan int, results chan<- workerOutcome, wg *sync.WaitGroup) {
	defer wg.Done()

	var out workerOutcome
	scratch := mempool.GetPoints(r.other.Len())
	defer mempool.PutPoints(scratch)

	for {
		select {
		case qi, ok := <-jobs:
			if !ok {
				select {
				case results <- out:
				case <-ctx.Done():
				}
				return
			}
			r.probe(qi, &out, scratch)
		case <-ctx.Done():
			return
		}
	}
}

// probe looks up one code in the reference code index and turns every hit
// into a 4-point hypothesis to verify.
func (r *probeRun) probe(qi int, out *workerOutcome, scratch []geometry.Point) {
	e := r.engine
	hits := e.codeIndex.WithinRadius(r.otherSet.Codes[qi].Row(), r.tolerance)
	if len(hits) == 0 {
		return
	}

	oq := r.otherSet.Quads[qi]
	src := [4]geometry.Point{
		r.other.At(oq.A),
		r.other.At(oq.B),
		r.other.At(oq.C),
		r.other.At(oq.D),
	}
	for _, hit := range hits {
		out.candidates++
		rq := e.refSet.Quads[hit.Index]
		dst := [4]geometry.Point{
			e.ref.At(rq.A),
			e.ref.At(rq.B),
			e.ref.At(rq.C),
			e.ref.At(rq.D),
		}
		tr, err := solve.Affine(src[:], dst[:])
		if err != nil {
			out.degenerate++
			continue
		}
		h := e.verify(tr, r.other, scratch)
		if h == nil {
			out.weak++
			continue
		}
		out.best = betterHypothesis(out.best, h)
	}
}

// Package benchmark measures registration throughput on synthetic bead
// fields, backing the bench command.
package benchmark

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/fidlab/quadmatch/internal/common"
)

// Result holds the measurements of one benchmark run.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore common.MemoryStats
	MemoryAfter  common.MemoryStats
	Iterations   int
	Err          error
}

// Avg returns the mean duration per iteration.
func (r Result) Avg() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// String returns a formatted one-line representation.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Err)
	}

	memDiff := int64(r.MemoryAfter.Alloc) - int64(r.MemoryBefore.Alloc) //nolint:gosec // G115: alloc counters fit in int64
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, mem: %+d KB",
		r.Name, r.Iterations, r.Avg(), r.Duration, memDiff/1024)
}

// namedFunc is one registered benchmark.
type namedFunc struct {
	name string
	fn   func() error
}

// Suite runs named benchmark closures with GC and memory bracketing.
type Suite struct {
	benchmarks []namedFunc
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty benchmark suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers a benchmark under name.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, namedFunc{name: name, fn: fn})
}

// Run runs the named benchmark for the given number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.name == name {
			return s.run(b, iterations)
		}
	}
	return Result{
		Name: name,
		Err:  fmt.Errorf("benchmark %q not found", name),
	}
}

// RunAll runs every registered benchmark in order.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, s.run(b, iterations))
	}
	return s.results
}

// run executes one benchmark. The run stops at the first iteration error.
func (s *Suite) run(b namedFunc, iterations int) Result {
	// Collect before measuring so earlier runs do not bill this one
	runtime.GC()
	memBefore := common.ReadMemoryStats()

	start := time.Now()
	var err error
	for range iterations {
		if e := b.fn(); e != nil {
			err = e
			break
		}
	}
	duration := time.Since(start)
	memAfter := common.ReadMemoryStats()

	return Result{
		Name:         b.name,
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  memAfter,
		Iterations:   iterations,
		Err:          err,
	}
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// PrintResults writes the last results, one line each.
func (s *Suite) PrintResults(w io.Writer) {
	fmt.Fprintln(w, "\nBenchmark Results:")
	fmt.Fprintln(w, "==================")
	for _, result := range s.Results() {
		fmt.Fprintln(w, result.String())
	}
	fmt.Fprintln(w)
}

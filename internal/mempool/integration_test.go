package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fidlab/quadmatch/internal/geometry"
)

// TestPoolIntegration_SimulatedVerifyWorkflow runs the buffer pattern of
// hypothesis verification: a transformed-point scratch slice plus a
// least-squares scratch slice per candidate, many candidates per run.
func TestPoolIntegration_SimulatedVerifyWorkflow(t *testing.T) {
	const (
		setSize    = 180
		candidates = 200
	)

	tr := geometry.Transform{A: 3, B: 1.01, C: -0.02, D: -5, E: 0.02, F: 0.99}
	src := make([]geometry.Point, setSize)
	for i := range src {
		src[i] = geometry.Point{X: float64(i % 20), Y: float64(i / 20)}
	}

	for range candidates {
		scratch := GetPoints(setSize)
		assert.Len(t, scratch, setSize)
		transformed := tr.ApplyAll(scratch, src)
		assert.Len(t, transformed, setSize)

		design := GetFloat64(2 * setSize * 6)
		for j := range design {
			design[j] = 0
		}

		PutFloat64(design)
		PutPoints(scratch)
	}
}

// TestPoolIntegration_ConcurrentWorkers simulates probe workers sharing
// the pools while verifying hypotheses in parallel.
func TestPoolIntegration_ConcurrentWorkers(t *testing.T) {
	const (
		numWorkers = 8
		iterations = 50
		setSize    = 400
	)

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := range numWorkers {
		go func(id int) {
			defer wg.Done()

			for i := range iterations {
				scratch := GetPoints(setSize)
				for j := range scratch {
					scratch[j] = geometry.Point{X: float64(id + i), Y: float64(j)}
				}
				design := GetFloat64(setSize)

				PutPoints(scratch)
				PutFloat64(design)
			}
		}(w)
	}

	wg.Wait()
}

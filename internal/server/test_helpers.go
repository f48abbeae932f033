package server

import (
	"context"
	"time"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/pointset"
)

// mockMatcher is a canned implementation of matcher for handler tests.
type mockMatcher struct {
	result *match.Result
	err    error
	cfg    pipeline.Config

	lastTolerance float64
}

func (m *mockMatcher) MatchSets(_ context.Context, _, _ *pointset.Set, tolerance float64) (*match.Result, error) {
	m.lastTolerance = tolerance
	return m.result, m.err
}

func (m *mockMatcher) Config() pipeline.Config { return m.cfg }

// newMockServer wires a Server directly around a mock, skipping New so
// tests control every field.
func newMockServer(m matcher) *Server {
	return &Server{
		pipeline:   m,
		corsOrigin: "*",
		maxBodyMB:  16,
		timeout:    5 * time.Second,
	}
}

// strongResult builds a plausible successful registration outcome.
func strongResult() *match.Result {
	return &match.Result{
		Transform: geometry.Translation(4, -2),
		Ratio:     21.7,
		Correspondences: []match.Correspondence{
			{Ref: 0, Other: 2}, {Ref: 1, Other: 0}, {Ref: 2, Other: 3},
			{Ref: 3, Other: 1}, {Ref: 5, Other: 4}, {Ref: 7, Other: 6},
		},
		MeanResidual: 0.42,
		Stats: match.Stats{
			RefPoints:   12,
			OtherPoints: 12,
			Duration:    20 * time.Millisecond,
		},
	}
}

// wireFrame converts points into the request payload form.
func wireFrame(pts []geometry.Point, width, height float64) Frame {
	f := Frame{Width: width, Height: height, Points: make([]FramePoint, len(pts))}
	for i, p := range pts {
		f.Points[i] = FramePoint{X: p.X, Y: p.Y}
	}
	return f
}

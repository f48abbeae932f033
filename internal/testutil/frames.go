package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/loader"
	"github.com/fidlab/quadmatch/internal/pointset"
	"github.com/fidlab/quadmatch/internal/synth"
)

// Fixture frames use the same acquisition geometry the engine tests run
// against: a 512x512 field with at least 12px between beads.
const (
	FrameWidth  = 512.0
	FrameHeight = 512.0

	frameMinSep = 12.0
)

// WriteFrame writes pts as a frame file at path, picking the format by
// extension (.csv or .json).
func WriteFrame(path string, pts []geometry.Point, width, height float64) error {
	ps, err := pointset.New(pts, width, height)
	if err != nil {
		return fmt.Errorf("build frame %s: %w", path, err)
	}
	return loader.Save(path, ps)
}

// GenerateFramePair writes a reference frame and a perturbed copy of it
// into dir and returns their paths. The copy applies tf to every bead and
// shuffles the point order, so registering other onto ref recovers the
// inverse of tf.
func GenerateFramePair(dir string, seed int64, n int, tf geometry.Transform) (refPath, otherPath string, err error) {
	field := synth.NewField(FrameWidth, FrameHeight, frameMinSep, seed)
	pts, err := field.Points(n)
	if err != nil {
		return "", "", fmt.Errorf("generate frame pair: %w", err)
	}

	refPath = filepath.Join(dir, "ref.csv")
	otherPath = filepath.Join(dir, "other.csv")
	if err := WriteFrame(refPath, pts, FrameWidth, FrameHeight); err != nil {
		return "", "", err
	}
	moved := field.Perturb(pts, synth.Perturbation{Transform: tf, Shuffle: true})
	if err := WriteFrame(otherPath, moved, FrameWidth, FrameHeight); err != nil {
		return "", "", err
	}
	return refPath, otherPath, nil
}

// LoadFrame reads a frame file, failing the test on any error.
func LoadFrame(t *testing.T, path string) *pointset.Set {
	t.Helper()

	ps, err := loader.Load(path)
	require.NoError(t, err, "Failed to load frame %s", path)
	return ps
}

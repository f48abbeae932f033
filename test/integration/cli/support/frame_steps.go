package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/testutil"
)

// aPairOfMatchingFramesExists generates a reference frame and a shifted,
// slightly rotated copy of it in the scenario temp directory.
func (testCtx *TestContext) aPairOfMatchingFramesExists() error {
	tf := geometry.Similarity(1, 0.02, testutil.FrameWidth/2, testutil.FrameHeight/2, 9, -5)
	refPath, otherPath, err := testutil.GenerateFramePair(testCtx.TempDir, 7, 35, tf)
	if err != nil {
		return fmt.Errorf("failed to generate frame pair: %w", err)
	}
	testCtx.RefFramePath = refPath
	testCtx.OtherFramePath = otherPath
	return nil
}

// aSparseFrameExists writes a frame with too few beads for quad
// generation.
func (testCtx *TestContext) aSparseFrameExists() error {
	pts := []geometry.Point{{X: 50, Y: 50}, {X: 200, Y: 80}, {X: 120, Y: 300}}
	path := filepath.Join(testCtx.TempDir, "sparse.csv")
	if err := testutil.WriteFrame(path, pts, testutil.FrameWidth, testutil.FrameHeight); err != nil {
		return fmt.Errorf("failed to write sparse frame: %w", err)
	}
	testCtx.SparseFramePath = path
	return nil
}

// aBatchManifestForTheFramesExists writes a manifest pairing the
// generated frames.
func (testCtx *TestContext) aBatchManifestForTheFramesExists() error {
	if testCtx.RefFramePath == "" || testCtx.OtherFramePath == "" {
		if err := testCtx.aPairOfMatchingFramesExists(); err != nil {
			return err
		}
	}

	path := filepath.Join(testCtx.TempDir, "pairs.csv")
	content := fmt.Sprintf("# ref,moving\n%s,%s\n", testCtx.RefFramePath, testCtx.OtherFramePath)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	testCtx.ManifestPath = path
	return nil
}

// RegisterFrameSteps registers the fixture generation steps.
func (testCtx *TestContext) RegisterFrameSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a pair of matching frames exists$`, testCtx.aPairOfMatchingFramesExists)
	sc.Step(`^a sparse frame exists$`, testCtx.aSparseFrameExists)
	sc.Step(`^a batch manifest for the frames exists$`, testCtx.aBatchManifestForTheFramesExists)
}

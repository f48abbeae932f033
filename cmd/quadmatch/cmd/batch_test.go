package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidlab/quadmatch/internal/batch"
	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/synth"
	"github.com/fidlab/quadmatch/internal/testutil"
)

// writeBatchPair writes a reference frame and its shifted copy under the
// same name in two directories, the layout directory discovery pairs up.
func writeBatchPair(t *testing.T, refDir, otherDir, name string, seed int64, n int) {
	t.Helper()

	field := synth.NewField(testutil.FrameWidth, testutil.FrameHeight, 12, seed)
	pts, err := field.Points(n)
	require.NoError(t, err)
	require.NoError(t, testutil.WriteFrame(filepath.Join(refDir, name), pts,
		testutil.FrameWidth, testutil.FrameHeight))

	moved := field.Perturb(pts, synth.Perturbation{
		Transform: geometry.Translation(8, -5),
		Shuffle:   true,
	})
	require.NoError(t, testutil.WriteFrame(filepath.Join(otherDir, name), moved,
		testutil.FrameWidth, testutil.FrameHeight))
}

func TestBatchCommand(t *testing.T) {
	assert.NotNil(t, batchCmd)
	assert.Equal(t, "batch", batchCmd.Use)
	assert.NotEmpty(t, batchCmd.Short)
	assert.NotEmpty(t, batchCmd.Long)
}

func TestBatchCommandHelp(t *testing.T) {
	command := batchCmd
	buf := new(bytes.Buffer)
	command.SetOut(buf)
	command.SetErr(buf)
	err := command.Help()
	require.NoError(t, err)
	output := strings.TrimSpace(buf.String())
	assert.Contains(t, output, "manifest")
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Flags:")
}

func TestBatchCommandRequiresSource(t *testing.T) {
	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"batch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--manifest or both --ref-dir and --other-dir")
}

func TestBatchCommandManifestConflictsWithDirs(t *testing.T) {
	_, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"batch", "--manifest", "pairs.csv", "--ref-dir", "ref"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestBatchCommandDirectories(t *testing.T) {
	dir := t.TempDir()
	refDir := filepath.Join(dir, "ref")
	otherDir := filepath.Join(dir, "moving")
	require.NoError(t, os.MkdirAll(refDir, 0o750))
	require.NoError(t, os.MkdirAll(otherDir, 0o750))

	writeBatchPair(t, refDir, otherDir, "a.csv", 31, 32)
	writeBatchPair(t, refDir, otherDir, "b.csv", 32, 36)

	outFile := filepath.Join(dir, "results.json")
	dbFile := filepath.Join(dir, "runs.db")
	_, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"batch",
			"--manifest", "",
			"--ref-dir", refDir, "--other-dir", otherDir,
			"--format", "json", "--output", outFile,
			"--db", dbFile, "--quiet"})
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var result struct {
		Pairs []*batch.PairResult `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Pairs, 2)
	for _, pr := range result.Pairs {
		assert.Empty(t, pr.Error)
		require.NotNil(t, pr.Result)
		assert.GreaterOrEqual(t, pr.Result.Ratio, 10.0)
	}

	// Successful pairs were persisted
	info, err := os.Stat(dbFile)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBatchCommandManifest(t *testing.T) {
	dir := t.TempDir()
	refPath, otherPath, err := testutil.GenerateFramePair(dir, 41, 30, geometry.Translation(5, 3))
	require.NoError(t, err)

	manifest := filepath.Join(dir, "pairs.csv")
	content := "# ref,moving\n" + refPath + "," + otherPath + "\n"
	require.NoError(t, os.WriteFile(manifest, []byte(content), 0o600))

	outFile := filepath.Join(dir, "results.json")
	_, err = executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"batch",
			"--manifest", manifest,
			"--ref-dir", "", "--other-dir", "",
			"--db", "",
			"--format", "json", "--output", outFile, "--quiet"})
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var result struct {
		Pairs []*batch.PairResult `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Pairs, 1)
	assert.Empty(t, result.Pairs[0].Error)
}

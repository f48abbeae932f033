// Command generate-test-data populates testdata/frames with synthetic
// bead frame pairs covering the degradation regimes registration has to
// survive, plus a manifest that feeds them to quadmatch batch.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/synth"
	"github.com/fidlab/quadmatch/internal/testutil"
)

// regime is one degradation applied to a generated moving frame.
type regime struct {
	name    string
	perturb synth.Perturbation
}

func regimes() []regime {
	center := testutil.FrameWidth / 2
	return []regime{
		{
			name:    "identity",
			perturb: synth.Perturbation{Transform: geometry.Identity(), Shuffle: true},
		},
		{
			name:    "shift",
			perturb: synth.Perturbation{Transform: geometry.Translation(14, -9), Shuffle: true},
		},
		{
			name: "rotated",
			perturb: synth.Perturbation{
				Transform: geometry.Similarity(1.01, 0.04, center, center, 5, 7),
				Shuffle:   true,
			},
		},
		{
			name: "jittered",
			perturb: synth.Perturbation{
				Transform: geometry.Translation(8, 11),
				Jitter:    0.4,
				Shuffle:   true,
			},
		},
		{
			name: "dropout",
			perturb: synth.Perturbation{
				Transform: geometry.Translation(-6, 4),
				Jitter:    0.3,
				DropRate:  0.15,
				Extra:     3,
				Shuffle:   true,
			},
		},
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "", "Output directory (default: <project root>/testdata/frames)")
		count   = flag.Int("n", 35, "Beads per frame")
		seed    = flag.Int64("seed", 1, "Generator seed")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic frame pairs for registration testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Populate testdata/frames\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -n 100 -seed 7  # Denser fields from another seed\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	slog.Info("Starting frame generation...")

	dir := *outDir
	if dir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, "testdata", "frames")
	}

	if *verbose {
		slog.Info("Options", "out", dir, "n", *count, "seed", *seed)
	}

	if err := generateFramePairs(dir, *count, *seed); err != nil {
		slog.Error("Failed to generate frame pairs", "error", err)
		os.Exit(1)
	}
	slog.Info("✓ Generated frame pairs", "dir", dir)

	if err := writeManifest(dir); err != nil {
		slog.Error("Failed to write manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("✓ Wrote batch manifest", "path", filepath.Join(dir, "manifest.csv"))

	slog.Info("Frame generation completed successfully!")
}

// generateFramePairs writes one ref/moving pair per degradation regime,
// each from its own base field.
func generateFramePairs(dir string, n int, seed int64) error {
	for i, r := range regimes() {
		pairDir := filepath.Join(dir, r.name)
		if err := testutil.EnsureDir(pairDir); err != nil {
			return fmt.Errorf("failed to create directory for regime '%s': %w", r.name, err)
		}

		field := synth.NewField(testutil.FrameWidth, testutil.FrameHeight, 12, seed+int64(i))
		pts, err := field.Points(n)
		if err != nil {
			return fmt.Errorf("failed to generate field for regime '%s': %w", r.name, err)
		}

		refPath := filepath.Join(pairDir, "ref.csv")
		if err := testutil.WriteFrame(refPath, pts, testutil.FrameWidth, testutil.FrameHeight); err != nil {
			return fmt.Errorf("failed to write reference frame for regime '%s': %w", r.name, err)
		}

		moving := field.Perturb(pts, r.perturb)
		movingPath := filepath.Join(pairDir, "moving.csv")
		if err := testutil.WriteFrame(movingPath, moving, testutil.FrameWidth, testutil.FrameHeight); err != nil {
			return fmt.Errorf("failed to write moving frame for regime '%s': %w", r.name, err)
		}
	}
	return nil
}

// writeManifest lists every generated pair for quadmatch batch.
func writeManifest(dir string) error {
	var b strings.Builder
	b.WriteString("# ref,moving\n")
	for _, r := range regimes() {
		b.WriteString(filepath.Join(dir, r.name, "ref.csv"))
		b.WriteString(",")
		b.WriteString(filepath.Join(dir, r.name, "moving.csv"))
		b.WriteString("\n")
	}
	return os.WriteFile(filepath.Join(dir, "manifest.csv"), []byte(b.String()), 0o600)
}

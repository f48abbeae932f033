package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fidlab/quadmatch/internal/benchmark"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark registration on synthetic bead fields",
	Long: `Benchmark registration on synthetic bead fields.

Sweeps the configured bead counts, timing quad index construction and
full registrations separately, and optionally compares the k-d tree
index against the hash grid at each count.

Examples:
  quadmatch bench
  quadmatch bench --counts 50,100,500 --iterations 10
  quadmatch bench --compare --jitter 0.5 --drop-rate 0.1`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runBenchCommand,
}

func runBenchCommand(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	flags := cmd.Flags()

	scaleConfig := benchmark.DefaultScaleConfig()
	scaleConfig.Pipeline = cfg.ToPipelineConfig()
	// Overlay rendering would dominate the timings.
	scaleConfig.Pipeline.Overlay.Enabled = false

	if flags.Changed("counts") {
		scaleConfig.Counts, _ = flags.GetIntSlice("counts")
	}
	if flags.Changed("iterations") {
		scaleConfig.Iterations, _ = flags.GetInt("iterations")
	}
	if flags.Changed("width") {
		scaleConfig.Width, _ = flags.GetFloat64("width")
	}
	if flags.Changed("height") {
		scaleConfig.Height, _ = flags.GetFloat64("height")
	}
	if flags.Changed("min-sep") {
		scaleConfig.MinSep, _ = flags.GetFloat64("min-sep")
	}
	if flags.Changed("seed") {
		scaleConfig.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("jitter") {
		scaleConfig.Jitter, _ = flags.GetFloat64("jitter")
	}
	if flags.Changed("drop-rate") {
		scaleConfig.DropRate, _ = flags.GetFloat64("drop-rate")
	}
	if flags.Changed("extra") {
		scaleConfig.Extra, _ = flags.GetInt("extra")
	}

	scale, err := benchmark.RunScale(cmd.Context(), scaleConfig)
	if err != nil {
		return fmt.Errorf("scaling benchmark failed: %w", err)
	}

	var comparison []benchmark.IndexComparisonResult
	if compare, _ := flags.GetBool("compare"); compare {
		comparison, err = benchmark.CompareIndexes(cmd.Context(), scaleConfig)
		if err != nil {
			return fmt.Errorf("index comparison failed: %w", err)
		}
	}

	benchmark.PrintReport(cmd.OutOrStdout(), scale, comparison)
	return nil
}

func addBenchFlags(cmd *cobra.Command) {
	defaults := benchmark.DefaultScaleConfig()
	cmd.Flags().IntSlice("counts", defaults.Counts, "Bead counts to sweep")
	cmd.Flags().Int("iterations", defaults.Iterations, "Timed registrations per count")
	cmd.Flags().Float64("width", defaults.Width, "Synthetic field width in pixels")
	cmd.Flags().Float64("height", defaults.Height, "Synthetic field height in pixels")
	cmd.Flags().Float64("min-sep", defaults.MinSep, "Minimum bead separation in pixels")
	cmd.Flags().Int64("seed", defaults.Seed, "Field generator seed")
	cmd.Flags().Float64("jitter", defaults.Jitter, "Centroid jitter sigma applied to the moving frame")
	cmd.Flags().Float64("drop-rate", defaults.DropRate, "Fraction of beads dropped from the moving frame")
	cmd.Flags().Int("extra", defaults.Extra, "Spurious detections added to the moving frame")
	cmd.Flags().Bool("compare", false, "Also compare the k-d tree index against the hash grid")
}

func init() {
	rootCmd.AddCommand(benchCmd)
	addBenchFlags(benchCmd)
}

// GetBenchCommand returns the bench command for testing purposes.
func GetBenchCommand() *cobra.Command {
	return benchCmd
}

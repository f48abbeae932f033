package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fidlab/quadmatch/internal/batch"
	"github.com/fidlab/quadmatch/internal/config"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Register many frame pairs in one run",
	Long: `Register many frame pairs in one run.

Pairs come either from a CSV manifest (one "reference,moving" row per
line) or from two directory trees paired by filename. Results are
reported in text, JSON, or CSV and can additionally be persisted to a
SQLite database.

Examples:
  quadmatch batch --manifest pairs.csv
  quadmatch batch --ref-dir ./ref --other-dir ./moving --recursive
  quadmatch batch --manifest pairs.csv --format csv --output results.csv --db runs.db`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func runBatchCommand(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()

	batchConfig, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	result, err := batch.Run(cmd.Context(), batchConfig)
	if err != nil {
		return fmt.Errorf("batch registration failed: %w", err)
	}

	if err := result.SaveResults(batchConfig.Format, batchConfig.OutputFile, batchConfig.Quiet); err != nil {
		return err
	}

	if batchConfig.ShowStats {
		result.PrintStats(batchConfig.Quiet)
	}

	return nil
}

// configToBatchConfig maps the loaded configuration onto a batch run,
// letting explicitly set CLI flags override configured values.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	flags := cmd.Flags()

	manifest, _ := flags.GetString("manifest")
	refDir, _ := flags.GetString("ref-dir")
	otherDir, _ := flags.GetString("other-dir")
	if manifest == "" && refDir == "" && otherDir == "" {
		return nil, errors.New("either --manifest or both --ref-dir and --other-dir are required")
	}
	if manifest != "" && (refDir != "" || otherDir != "") {
		return nil, errors.New("--manifest cannot be combined with --ref-dir/--other-dir")
	}

	batchConfig := &batch.Config{
		Pipeline:  cfg.ToPipelineConfig(),
		Tolerance: cfg.Matcher.Tolerance,

		Manifest: manifest,
		RefDir:   refDir,
		OtherDir: otherDir,

		Recursive:       cfg.Batch.Recursive,
		IncludePatterns: splitPatterns(cfg.Batch.Include),
		ExcludePatterns: splitPatterns(cfg.Batch.Exclude),

		Format:     cfg.Batch.Format,
		OutputFile: cfg.Batch.Output,
		DBPath:     cfg.Batch.DBPath,

		Workers:   cfg.Parallel.Workers,
		QueueSize: cfg.Parallel.BatchSize,

		ContinueOnError: cfg.Batch.ContinueOnError,
	}

	if flags.Changed("recursive") {
		batchConfig.Recursive, _ = flags.GetBool("recursive")
	}
	if flags.Changed("include") {
		batchConfig.IncludePatterns, _ = flags.GetStringSlice("include")
	}
	if flags.Changed("exclude") {
		batchConfig.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("format") {
		batchConfig.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		batchConfig.OutputFile, _ = flags.GetString("output")
	}
	if flags.Changed("db") {
		batchConfig.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("queue-size") {
		batchConfig.QueueSize, _ = flags.GetInt("queue-size")
	}
	if flags.Changed("continue-on-error") {
		batchConfig.ContinueOnError, _ = flags.GetBool("continue-on-error")
	}

	batchConfig.ShowProgress, _ = flags.GetBool("progress")
	batchConfig.Quiet, _ = flags.GetBool("quiet")
	batchConfig.ShowStats, _ = flags.GetBool("stats")
	batchConfig.ProgressInterval, _ = flags.GetDuration("progress-interval")

	validFormats := []string{outputFormatText, outputFormatJSON, outputFormatCSV}
	valid := false
	for _, f := range validFormats {
		if batchConfig.Format == f {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("invalid output format: %s (must be one of: %s)",
			batchConfig.Format, strings.Join(validFormats, ", "))
	}

	return batchConfig, nil
}

// splitPatterns turns a comma-separated pattern list from the config
// file into the slice form the discovery code expects.
func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("manifest", "", "CSV manifest with one reference,moving row per pair")
	cmd.Flags().String("ref-dir", "", "Directory holding reference frames")
	cmd.Flags().String("other-dir", "", "Directory holding moving frames, paired by filename")
	cmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories during discovery")
	cmd.Flags().StringSlice("include", nil, "Glob patterns a frame filename must match")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns that exclude frame filenames")
	cmd.Flags().StringP("format", "f", "", "Output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	cmd.Flags().String("db", "", "SQLite database to persist results to")
	cmd.Flags().Int("queue-size", 0, "Job queue depth of the worker pool")
	cmd.Flags().Bool("progress", false, "Show progress while processing")
	cmd.Flags().BoolP("quiet", "q", false, "Suppress non-result output")
	cmd.Flags().Bool("stats", false, "Print run statistics after processing")
	cmd.Flags().Duration("progress-interval", 0, "Minimum interval between progress updates")
	cmd.Flags().Bool("continue-on-error", true, "Keep processing remaining pairs after a failure")
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addBatchFlags(batchCmd)
}

// GetBatchCommand returns the batch command for testing purposes.
func GetBatchCommand() *cobra.Command {
	return batchCmd
}

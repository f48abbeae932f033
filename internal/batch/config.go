package batch

import (
	"fmt"
	"os"
	"time"

	"github.com/fidlab/quadmatch/internal/pipeline"
)

// Config holds all configuration for a batch registration run.
type Config struct {
	// Pipeline carries the matcher, index, and overlay settings shared by
	// every pair.
	Pipeline pipeline.Config

	// Tolerance is the code-space search radius; zero falls back to the
	// pipeline default.
	Tolerance float64

	// Pair discovery settings. A non-empty Manifest selects manifest mode;
	// otherwise RefDir and OtherDir are paired by filename.
	Manifest        string
	RefDir          string
	OtherDir        string
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output settings.
	Format     string
	OutputFile string
	DBPath     string

	// Parallel processing settings.
	Workers   int
	QueueSize int

	// Progress settings.
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration

	// ContinueOnError keeps processing remaining pairs after a failure
	// instead of aborting the run.
	ContinueOnError bool
}

// Summary aggregates the outcome of a batch run.
type Summary struct {
	Pairs       int           `json:"pairs"`
	Processed   int           `json:"processed"`
	Failed      int           `json:"failed"`
	WorkerCount int           `json:"worker_count"`
	Duration    time.Duration `json:"duration_ns"`
}

// Result holds the per-pair outcomes of a batch run.
type Result struct {
	Results []*PairResult
	Summary Summary
}

// FormatResults formats the batch outcomes in the given format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Results, format)
}

// SaveResults writes the formatted outcomes to a file, or stdout when no
// file is given.
func (r *Result) SaveResults(format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(os.Stdout, "Results written to %s\n", outputFile)
		}
	} else {
		_, _ = fmt.Fprint(os.Stdout, output)
	}

	return nil
}

// PrintStats prints run statistics to stdout.
func (r *Result) PrintStats(quiet bool) {
	if quiet {
		return
	}

	s := r.Summary
	_, _ = fmt.Fprintf(os.Stdout, "\nRegistration Statistics:\n")
	_, _ = fmt.Fprintf(os.Stdout, "  Total pairs: %d\n", s.Pairs)
	_, _ = fmt.Fprintf(os.Stdout, "  Processed: %d\n", s.Processed)
	_, _ = fmt.Fprintf(os.Stdout, "  Failed: %d\n", s.Failed)
	_, _ = fmt.Fprintf(os.Stdout, "  Workers: %d\n", s.WorkerCount)
	_, _ = fmt.Fprintf(os.Stdout, "  Duration: %v\n", s.Duration.Round(time.Millisecond))
	if s.Processed > 0 {
		avg := s.Duration / time.Duration(s.Processed)
		_, _ = fmt.Fprintf(os.Stdout, "  Avg per pair: %v\n", avg.Round(time.Millisecond))
		_, _ = fmt.Fprintf(os.Stdout, "  Throughput: %.1f pairs/sec\n",
			float64(s.Processed)/s.Duration.Seconds())
	}
}

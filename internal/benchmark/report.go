package benchmark

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"
)

// PrintReport writes the sweep and comparison results with system
// context for the run.
func PrintReport(w io.Writer, scale []ScaleResult, cmp []IndexComparisonResult) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "Registration Benchmark")
	fmt.Fprintln(w, strings.Repeat("=", 72))

	fmt.Fprintf(w, "System:\n")
	fmt.Fprintf(w, "  GOOS: %s\n", runtime.GOOS)
	fmt.Fprintf(w, "  GOARCH: %s\n", runtime.GOARCH)
	fmt.Fprintf(w, "  NumCPU: %d\n", runtime.NumCPU())
	fmt.Fprintf(w, "  Go Version: %s\n", runtime.Version())
	fmt.Fprintln(w)

	if len(scale) > 0 {
		fmt.Fprintln(w, "Scaling:")
		fmt.Fprintln(w, strings.Repeat("-", 50))
		for _, r := range scale {
			fmt.Fprintf(w, "  %s\n", r.String())
		}
		fmt.Fprintln(w)
		printScaleSummary(w, scale)
	}

	if len(cmp) > 0 {
		fmt.Fprintln(w, "Index comparison:")
		fmt.Fprintln(w, strings.Repeat("-", 50))
		for _, r := range cmp {
			fmt.Fprintf(w, "  %s\n", r.String())
		}
		fmt.Fprintln(w)
	}
}

// printScaleSummary reduces the sweep to throughput numbers.
func printScaleSummary(w io.Writer, scale []ScaleResult) {
	var matchTotal time.Duration
	var iterations int
	for _, r := range scale {
		if r.Match.Err != nil {
			continue
		}
		matchTotal += r.Match.Duration
		iterations += r.Match.Iterations
	}
	if iterations == 0 {
		return
	}

	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Registrations timed: %d\n", iterations)
	fmt.Fprintf(w, "  Mean registration: %v\n", matchTotal/time.Duration(iterations))
	fmt.Fprintf(w, "  Throughput: %.1f registrations/sec\n",
		float64(iterations)/matchTotal.Seconds())
	fmt.Fprintln(w)
}

// Package version records build metadata stamped in via ldflags.
package version

import "fmt"

// Build-time variables set by ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String renders the build metadata on one line for CLI output.
func String() string {
	return fmt.Sprintf("quadmatch %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}

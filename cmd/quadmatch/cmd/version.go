package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fidlab/quadmatch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		v, commit, date := version.Info()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "quadmatch %s\n", v)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// GetVersionCommand returns the version command for testing purposes.
func GetVersionCommand() *cobra.Command {
	return versionCmd
}

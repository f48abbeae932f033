package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fidlab/quadmatch/internal/pipeline"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// matchCmd represents the match command.
var matchCmd = &cobra.Command{
	Use:   "match [reference] [moving]",
	Short: "Register a moving bead frame onto a reference frame",
	Long: `Register two frame files against each other. The moving frame is
matched onto the reference with no prior correspondence; the output
reports the recovered affine transform, the verified correspondences,
and a log-odds confidence that the alignment is not chance.

Supported formats: CSV (x,y rows, optional "# width= height=" header)
and JSON frames.

Examples:
  quadmatch match reference.csv moving.csv
  quadmatch match camA.json camB.json --format json
  quadmatch match ref.csv mov.csv --overlay --overlay-dir out/`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         runMatchCommand,
}

func runMatchCommand(cmd *cobra.Command, args []string) error {
	// Get configuration (includes CLI flags, config file, env vars, and defaults)
	cfg := GetConfig()

	format, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("output")

	// Validate output format
	validFormats := []string{outputFormatText, outputFormatJSON, outputFormatCSV}
	isValidFormat := false
	for _, f := range validFormats {
		if format == f {
			isValidFormat = true
			break
		}
	}
	if !isValidFormat {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(validFormats, ", "))
	}

	pl, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build registration pipeline: %w", err)
	}

	fm, err := pl.MatchFiles(cmd.Context(), args[0], args[1], 0)
	if err != nil {
		return err
	}

	var out string
	switch format {
	case outputFormatJSON:
		out, err = pipeline.ToJSON(fm)
	case outputFormatCSV:
		out, err = pipeline.ToCSV(fm)
	default:
		out, err = pipeline.ToText(fm)
	}
	if err != nil {
		return fmt.Errorf("format %s failed: %w", format, err)
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(out), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func addMatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Bool("overlay", false, "render overlay artifacts for the matched pair")
	cmd.Flags().String("overlay-dir", "overlays", "directory to write overlay files")
	cmd.Flags().String("overlay-format", "raster", "overlay artifact kind (raster, figure, both)")
}

// bindMatchFlags binds the overlay flags to viper configuration keys.
func bindMatchFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"overlay.enabled", "overlay"},
		{"overlay.dir", "overlay-dir"},
		{"overlay.format", "overlay-format"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(matchCmd)

	addMatchFlags(matchCmd)
	bindMatchFlags(matchCmd)
}

// GetMatchCommand returns the match command for testing purposes.
func GetMatchCommand() *cobra.Command {
	return matchCmd
}

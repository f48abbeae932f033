package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fidlab/quadmatch/internal/loader"
	"github.com/fidlab/quadmatch/internal/pointset"
	"github.com/fidlab/quadmatch/internal/quad"
	"github.com/fidlab/quadmatch/internal/spatial"
)

// inspectCmd represents the inspect command.
var inspectCmd = &cobra.Command{
	Use:   "inspect [frame]",
	Short: "Report frame statistics and quad code coverage",
	Long: `Load a single frame file and report its geometry together with the
quads the configured size window produces: how many anchor pairs and
candidates were enumerated, how many quads survived, and how far apart
their codes sit in code space. The code spacing is the scale a probe
tolerance has to beat, so this is the place to look before tuning
--tolerance, --min-size or --max-size.

Examples:
  quadmatch inspect frame.csv
  quadmatch inspect frame.csv --min-size 30 --max-size 150
  quadmatch inspect sparse.json --width 512 --height 512 --format json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runInspectCommand,
}

// FrameReport is the inspect command's summary of one frame.
type FrameReport struct {
	Path     string  `json:"path"`
	Points   int     `json:"points"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	OutOfFOV int     `json:"out_of_fov"`
	Bounds   struct {
		MinX float64 `json:"min_x"`
		MinY float64 `json:"min_y"`
		MaxX float64 `json:"max_x"`
		MaxY float64 `json:"max_y"`
	} `json:"bounds"`

	Params      quad.Params `json:"params"`
	AnchorPairs int         `json:"anchor_pairs"`
	Candidates  int         `json:"candidates"`
	Discarded   int         `json:"discarded"`
	Quads       int         `json:"quads"`

	// Nearest-neighbor distances between quad codes. Zero values mean
	// ambiguous constellations that hash to the same code.
	CodeSpacingMin  float64 `json:"code_spacing_min,omitempty"`
	CodeSpacingMean float64 `json:"code_spacing_mean,omitempty"`
	CodeSpacingMax  float64 `json:"code_spacing_max,omitempty"`
}

func runInspectCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	path := args[0]

	format, _ := cmd.Flags().GetString("format")
	if format != outputFormatText && format != outputFormatJSON {
		return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
	}

	width, _ := cmd.Flags().GetFloat64("width")
	height, _ := cmd.Flags().GetFloat64("height")

	var ps *pointset.Set
	var err error
	if width > 0 || height > 0 {
		ps, err = loader.LoadWithFOV(path, width, height)
	} else {
		ps, err = loader.Load(path)
	}
	if err != nil {
		return err
	}

	report, err := buildFrameReport(cmd.Context(), path, ps, cfg.QuadParams())
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}

	if format == outputFormatJSON {
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), report.String())
	return err
}

// buildFrameReport enumerates the frame's quads and measures their code
// spacing.
func buildFrameReport(ctx context.Context, path string, ps *pointset.Set, params quad.Params) (*FrameReport, error) {
	idx, err := spatial.NewKDTree(spatial.PointRows(ps.Points()))
	if err != nil {
		return nil, err
	}
	builder, err := quad.NewBuilder(params)
	if err != nil {
		return nil, err
	}
	set, err := builder.Build(ctx, ps, idx)
	if err != nil {
		return nil, err
	}

	r := &FrameReport{
		Path:        path,
		Points:      ps.Len(),
		Width:       ps.Width(),
		Height:      ps.Height(),
		OutOfFOV:    ps.OutOfFOV(),
		Params:      params,
		AnchorPairs: set.Stats.AnchorPairs,
		Candidates:  set.Stats.Candidates,
		Discarded:   set.Stats.Discarded,
		Quads:       len(set.Quads),
	}
	box := ps.Bounds()
	r.Bounds.MinX, r.Bounds.MinY = box.MinX, box.MinY
	r.Bounds.MaxX, r.Bounds.MaxY = box.MaxX, box.MaxY

	if len(set.Codes) >= 2 {
		lo, mean, hi, err := codeSpacing(set.Codes)
		if err != nil {
			return nil, err
		}
		r.CodeSpacingMin, r.CodeSpacingMean, r.CodeSpacingMax = lo, mean, hi
	}
	return r, nil
}

// codeSpacing indexes the codes and collects each one's distance to its
// nearest distinct row.
func codeSpacing(codes []quad.Code) (lo, mean, hi float64, err error) {
	idx, err := spatial.NewKDTree(quad.CodeRows(codes))
	if err != nil {
		return 0, 0, 0, err
	}
	lo = math.Inf(1)
	var sum float64
	for _, c := range codes {
		// The nearest hit is the code itself at distance zero.
		nb := idx.KNearest(c.Row(), 2)
		if len(nb) < 2 {
			continue
		}
		d := nb[1].Distance
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
		sum += d
	}
	return lo, sum / float64(len(codes)), hi, nil
}

// String renders the report in the text layout of the match command.
func (r *FrameReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "frame:        %s\n", r.Path)
	fmt.Fprintf(&b, "points:       %d\n", r.Points)
	fmt.Fprintf(&b, "fov:          %g x %g px\n", r.Width, r.Height)
	fmt.Fprintf(&b, "bounds:       [%.1f, %.1f] .. [%.1f, %.1f]\n",
		r.Bounds.MinX, r.Bounds.MinY, r.Bounds.MaxX, r.Bounds.MaxY)
	if r.OutOfFOV > 0 {
		fmt.Fprintf(&b, "out of fov:   %d\n", r.OutOfFOV)
	}
	fmt.Fprintf(&b, "size window:  %g .. %g px, %d neighbors\n",
		r.Params.MinSize, r.Params.MaxSize, r.Params.MaxNeighbors)
	fmt.Fprintf(&b, "anchor pairs: %d\n", r.AnchorPairs)
	fmt.Fprintf(&b, "candidates:   %d (%d discarded)\n", r.Candidates, r.Discarded)
	fmt.Fprintf(&b, "quads:        %d\n", r.Quads)
	if r.Quads >= 2 {
		fmt.Fprintf(&b, "code spacing: min %.4f, mean %.4f, max %.4f\n",
			r.CodeSpacingMin, r.CodeSpacingMean, r.CodeSpacingMax)
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	inspectCmd.Flags().Float64("width", 0, "override the frame's field-of-view width")
	inspectCmd.Flags().Float64("height", 0, "override the frame's field-of-view height")
}

// GetInspectCommand returns the inspect command for testing purposes.
func GetInspectCommand() *cobra.Command {
	return inspectCmd
}

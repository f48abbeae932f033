// Package overlay renders matched frame pairs as images for visual
// inspection: a raster view with the moving beads projected into the
// reference frame, and a gonum/plot figure of the same geometry.
package overlay

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pointset"
	"github.com/fidlab/quadmatch/internal/quad"
)

// Output formats for Emit.
const (
	FormatRaster = "raster"
	FormatFigure = "figure"
	FormatBoth   = "both"
)

// Config controls overlay generation for matched frame pairs.
type Config struct {
	// Enabled turns overlay output on. When false, Emit is a no-op.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Dir receives the rendered files. Created on demand.
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`

	// Format selects raster, figure, or both.
	Format string `mapstructure:"format" yaml:"format" json:"format"`

	// Colors as "#RRGGBB" or "RRGGBB" hex strings.
	RefColor   string `mapstructure:"ref_color" yaml:"ref_color" json:"ref_color"`
	OtherColor string `mapstructure:"other_color" yaml:"other_color" json:"other_color"`
	LinkColor  string `mapstructure:"link_color" yaml:"link_color" json:"link_color"`
}

// DefaultConfig returns the overlay defaults: disabled, writing raster
// PNGs into ./overlays with blue reference beads, red moving beads and
// green correspondence links.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		Dir:        "overlays",
		Format:     FormatRaster,
		RefColor:   "#2060c0",
		OtherColor: "#d03020",
		LinkColor:  "#20a040",
	}
}

// Validate rejects configurations the renderer cannot draw with.
func (c Config) Validate() error {
	switch c.Format {
	case FormatRaster, FormatFigure, FormatBoth:
	default:
		return fmt.Errorf("unknown overlay format %q: %w", c.Format, quad.ErrInvalidConfiguration)
	}
	if c.Enabled && c.Dir == "" {
		return fmt.Errorf("overlay dir must not be empty: %w", quad.ErrInvalidConfiguration)
	}
	for _, s := range []string{c.RefColor, c.OtherColor, c.LinkColor} {
		if _, err := ParseHexColor(s); err != nil {
			return fmt.Errorf("%w: %w", err, quad.ErrInvalidConfiguration)
		}
	}
	return nil
}

// ParseHexColor parses colors like "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("hex color %q must have 6 digits", s)
	}
	var r, g, b int
	if _, err := fmt.Sscanf(h, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("hex color %q is not parseable: %w", s, err)
	}
	return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}, nil //nolint:gosec // G115: Sscanf %02x caps each channel at 255
}

// Renderer draws overlays for one configuration. Safe for concurrent use.
type Renderer struct {
	cfg   Config
	ref   color.NRGBA
	other color.NRGBA
	link  color.NRGBA
}

// NewRenderer validates the configuration and resolves its colors.
func NewRenderer(cfg Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rd := &Renderer{cfg: cfg}
	rd.ref, _ = ParseHexColor(cfg.RefColor)
	rd.other, _ = ParseHexColor(cfg.OtherColor)
	rd.link, _ = ParseHexColor(cfg.LinkColor)
	return rd, nil
}

// Emit renders the configured artifacts for one matched pair and returns
// the files written. The name, usually the moving frame's path, picks the
// output basenames. A nil result draws both sets unaligned without links.
func (rd *Renderer) Emit(name string, ref, other *pointset.Set, res *match.Result) ([]string, error) {
	if !rd.cfg.Enabled {
		return nil, nil
	}
	if err := os.MkdirAll(rd.cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create overlay dir: %w", err)
	}
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var written []string
	if rd.cfg.Format == FormatRaster || rd.cfg.Format == FormatBoth {
		path := filepath.Join(rd.cfg.Dir, base+"_overlay.png")
		if err := imaging.Save(rd.Raster(ref, other, res), path); err != nil {
			return written, fmt.Errorf("failed to save overlay raster: %w", err)
		}
		written = append(written, path)
	}
	if rd.cfg.Format == FormatFigure || rd.cfg.Format == FormatBoth {
		path := filepath.Join(rd.cfg.Dir, base+"_figure.png")
		if err := rd.Figure(ref, other, res, path); err != nil {
			return written, fmt.Errorf("failed to save overlay figure: %w", err)
		}
		written = append(written, path)
	}
	return written, nil
}

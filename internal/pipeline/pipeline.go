// Package pipeline wires loading, matching and overlay rendering into the
// operations the CLI, the HTTP server and the batch runner share.
package pipeline

import (
	"fmt"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/overlay"
	"github.com/fidlab/quadmatch/internal/quad"
)

// DefaultTolerance is the quad-code probe radius used when callers do not
// pick one. Code space is normalized to the anchor baseline, so this is a
// relative unit, not pixels.
const DefaultTolerance = 0.01

// Config holds configuration for the matching pipeline and its components.
type Config struct {
	// Params drive quad enumeration on both sides of every comparison.
	Params quad.Params

	// Options tune verification and the probe worker pool.
	Options match.Options

	// Tolerance is the default quad-code probe radius.
	Tolerance float64

	// Overlay controls optional rendering of matched pairs.
	Overlay overlay.Config
}

// DefaultConfig returns a pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Params:    quad.DefaultParams(),
		Options:   match.DefaultOptions(),
		Tolerance: DefaultTolerance,
		Overlay:   overlay.DefaultConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithMinSize sets the lower anchor-separation bound in pixels.
func (b *Builder) WithMinSize(v float64) *Builder {
	b.cfg.Params.MinSize = v
	return b
}

// WithMaxSize sets the upper anchor-separation bound in pixels.
func (b *Builder) WithMaxSize(v float64) *Builder {
	b.cfg.Params.MaxSize = v
	return b
}

// WithMaxNeighbors caps the free-point candidates per anchor.
func (b *Builder) WithMaxNeighbors(n int) *Builder {
	b.cfg.Params.MaxNeighbors = n
	return b
}

// WithTolerance sets the default quad-code probe radius.
func (b *Builder) WithTolerance(v float64) *Builder {
	b.cfg.Tolerance = v
	return b
}

// WithInlierRadius sets the pixel radius of transform verification.
func (b *Builder) WithInlierRadius(v float64) *Builder {
	b.cfg.Options.InlierRadius = v
	return b
}

// WithMinInliers sets the correspondence floor below which hypotheses die.
func (b *Builder) WithMinInliers(n int) *Builder {
	b.cfg.Options.MinInliers = n
	return b
}

// WithWorkers caps the probe worker goroutines. Zero uses GOMAXPROCS.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Options.Workers = n
	return b
}

// WithIndex picks the spatial index implementation.
func (b *Builder) WithIndex(kind match.IndexKind) *Builder {
	b.cfg.Options.Index = kind
	return b
}

// WithGridCell sets the cell size for the grid index.
func (b *Builder) WithGridCell(v float64) *Builder {
	b.cfg.Options.GridCell = v
	return b
}

// WithOverlay replaces the overlay configuration.
func (b *Builder) WithOverlay(cfg overlay.Config) *Builder {
	b.cfg.Overlay = cfg
	return b
}

// WithOverlayDir enables overlay output into dir. An empty dir leaves the
// configuration untouched.
func (b *Builder) WithOverlayDir(dir string) *Builder {
	if dir != "" {
		b.cfg.Overlay.Enabled = true
		b.cfg.Overlay.Dir = dir
	}
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the assembled configuration before any indexes exist.
func (b *Builder) Validate() error {
	if err := b.cfg.Params.Validate(); err != nil {
		return err
	}
	if err := b.cfg.Options.Validate(); err != nil {
		return err
	}
	if b.cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g: %w", b.cfg.Tolerance, quad.ErrInvalidConfiguration)
	}
	return b.cfg.Overlay.Validate()
}

// Pipeline registers moving bead frames onto references with one shared
// configuration. Safe for concurrent use.
type Pipeline struct {
	cfg      Config
	renderer *overlay.Renderer
}

// Build validates the configuration and assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: b.cfg}
	if b.cfg.Overlay.Enabled {
		rd, err := overlay.NewRenderer(b.cfg.Overlay)
		if err != nil {
			return nil, fmt.Errorf("init overlay renderer: %w", err)
		}
		p.renderer = rd
	}
	return p, nil
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

package config

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/quad"
)

// TestDefaultConfig verifies that DefaultConfig returns expected values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Matcher.MinSize != 20 {
		t.Errorf("Expected matcher min_size 20, got %g", cfg.Matcher.MinSize)
	}
	if cfg.Matcher.MaxSize != 200 {
		t.Errorf("Expected matcher max_size 200, got %g", cfg.Matcher.MaxSize)
	}
	if cfg.Matcher.MaxNeighbors != 8 {
		t.Errorf("Expected matcher max_neighbors 8, got %d", cfg.Matcher.MaxNeighbors)
	}
	if cfg.Matcher.Tolerance != pipeline.DefaultTolerance {
		t.Errorf("Expected matcher tolerance %g, got %g", pipeline.DefaultTolerance, cfg.Matcher.Tolerance)
	}
	if cfg.Matcher.InlierRadius != 3 {
		t.Errorf("Expected matcher inlier_radius 3, got %g", cfg.Matcher.InlierRadius)
	}
	if cfg.Matcher.MinInliers != 3 {
		t.Errorf("Expected matcher min_inliers 3, got %d", cfg.Matcher.MinInliers)
	}

	if cfg.Spatial.Kind != string(match.IndexKDTree) {
		t.Errorf("Expected spatial kind 'kdtree', got %s", cfg.Spatial.Kind)
	}
	if cfg.Parallel.Workers != 0 {
		t.Errorf("Expected parallel workers 0, got %d", cfg.Parallel.Workers)
	}
	if cfg.Parallel.BatchSize != 64 {
		t.Errorf("Expected parallel batch_size 64, got %d", cfg.Parallel.BatchSize)
	}

	if cfg.Overlay.Enabled {
		t.Error("Expected overlay to be disabled by default")
	}
	if cfg.Overlay.Format != "raster" {
		t.Errorf("Expected overlay format 'raster', got %s", cfg.Overlay.Format)
	}

	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected server host 'localhost', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "*" {
		t.Errorf("Expected CORS origin '*', got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Server.MaxBodyMB != 16 {
		t.Errorf("Expected max_body_mb 16, got %d", cfg.Server.MaxBodyMB)
	}

	if cfg.Batch.Format != "text" {
		t.Errorf("Expected batch format 'text', got %s", cfg.Batch.Format)
	}
	if !cfg.Batch.ContinueOnError {
		t.Error("Expected batch continue_on_error to be true")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Expected log format 'text', got %s", cfg.Log.Format)
	}
}

// TestValidate verifies the default tree validates and broken trees do not.
func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero max neighbors", func(c *Config) { c.Matcher.MaxNeighbors = 0 }, "max neighbors"},
		{"inverted size window", func(c *Config) { c.Matcher.MinSize = 300 }, "min size"},
		{"negative tolerance", func(c *Config) { c.Matcher.Tolerance = -1 }, "tolerance"},
		{"zero inlier radius", func(c *Config) { c.Matcher.InlierRadius = 0 }, "inlier radius"},
		{"unknown index kind", func(c *Config) { c.Spatial.Kind = "rtree" }, "index kind"},
		{"zero batch size", func(c *Config) { c.Parallel.BatchSize = 0 }, "invalid batch size"},
		{"bad overlay format", func(c *Config) { c.Overlay.Format = "bmp" }, "overlay format"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyMB = 0 }, "invalid max body size"},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "invalid rate limit"},
		{"bad batch format", func(c *Config) { c.Batch.Format = "xml" }, "invalid batch format"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

// TestValidateWrapsSentinel verifies component failures keep their sentinel.
func TestValidateWrapsSentinel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matcher.MaxNeighbors = -1
	if err := cfg.Validate(); !errors.Is(err, quad.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

// TestQuadParams verifies the matcher section maps onto quad parameters.
func TestQuadParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matcher.MinSize = 31
	cfg.Matcher.MaxSize = 311
	cfg.Matcher.MaxNeighbors = 13

	p := cfg.QuadParams()
	if p.MinSize != 31 || p.MaxSize != 311 || p.MaxNeighbors != 13 {
		t.Errorf("unexpected params: %+v", p)
	}
}

// TestEngineOptions verifies the merged option mapping.
func TestEngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matcher.InlierRadius = 4.5
	cfg.Matcher.MinInliers = 5
	cfg.Parallel.Workers = 3
	cfg.Spatial.Kind = "grid"
	cfg.Spatial.CellSize = 48

	o := cfg.EngineOptions()
	if o.InlierRadius != 4.5 {
		t.Errorf("Expected inlier radius 4.5, got %g", o.InlierRadius)
	}
	if o.MinInliers != 5 {
		t.Errorf("Expected min inliers 5, got %d", o.MinInliers)
	}
	if o.Workers != 3 {
		t.Errorf("Expected workers 3, got %d", o.Workers)
	}
	if o.Index != match.IndexGrid {
		t.Errorf("Expected grid index, got %s", o.Index)
	}
	if o.GridCell != 48 {
		t.Errorf("Expected grid cell 48, got %g", o.GridCell)
	}
}

// TestToPipelineConfig verifies the pipeline conversion.
func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matcher.Tolerance = 0.025
	cfg.Overlay.Enabled = true
	cfg.Overlay.Dir = "renders"

	pc := cfg.ToPipelineConfig()
	if pc.Params != cfg.QuadParams() {
		t.Errorf("params not carried over: %+v", pc.Params)
	}
	if pc.Options != cfg.EngineOptions() {
		t.Errorf("options not carried over: %+v", pc.Options)
	}
	if pc.Tolerance != 0.025 {
		t.Errorf("Expected tolerance 0.025, got %g", pc.Tolerance)
	}
	if !pc.Overlay.Enabled || pc.Overlay.Dir != "renders" {
		t.Errorf("overlay not carried over: %+v", pc.Overlay)
	}
}

// TestSlogLevel verifies the level mapping including the fallback.
func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn},
		{"garbled", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Log.Level = tt.level
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

// Package config holds the complete configuration tree for the quadmatch
// tools. It supports loading from configuration files, environment
// variables, and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/overlay"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/quad"
)

// Config represents the complete configuration for the quadmatch tools.
type Config struct {
	// Matcher holds the registration knobs shared by every command.
	Matcher MatcherConfig `mapstructure:"matcher" yaml:"matcher" json:"matcher"`

	// Spatial selects the neighbor index implementation.
	Spatial SpatialConfig `mapstructure:"spatial" yaml:"spatial" json:"spatial"`

	// Parallel bounds worker pools.
	Parallel ParallelConfig `mapstructure:"parallel" yaml:"parallel" json:"parallel"`

	// Overlay controls rendering of matched pairs.
	Overlay overlay.Config `mapstructure:"overlay" yaml:"overlay" json:"overlay"`

	// Server configures the serve command.
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch configures the batch command.
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Log configures the slog handler.
	Log LogConfig `mapstructure:"log" yaml:"log" json:"log"`
}

// MatcherConfig contains the quad enumeration and verification settings.
type MatcherConfig struct {
	MinSize      float64 `mapstructure:"min_size" yaml:"min_size" json:"min_size"`
	MaxSize      float64 `mapstructure:"max_size" yaml:"max_size" json:"max_size"`
	MaxNeighbors int     `mapstructure:"max_neighbors" yaml:"max_neighbors" json:"max_neighbors"`
	Tolerance    float64 `mapstructure:"tolerance" yaml:"tolerance" json:"tolerance"`
	InlierRadius float64 `mapstructure:"inlier_radius" yaml:"inlier_radius" json:"inlier_radius"`
	MinInliers   int     `mapstructure:"min_inliers" yaml:"min_inliers" json:"min_inliers"`
}

// SpatialConfig selects the 2D neighbor index.
type SpatialConfig struct {
	Kind     string  `mapstructure:"kind" yaml:"kind" json:"kind"`
	CellSize float64 `mapstructure:"cell_size" yaml:"cell_size" json:"cell_size"`
}

// ParallelConfig bounds the worker pools.
type ParallelConfig struct {
	// Workers caps probe and batch goroutines. Zero uses GOMAXPROCS.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`

	// BatchSize is the job channel depth of the batch runner.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
}

// ServerConfig contains settings for the serve command.
type ServerConfig struct {
	Host       string  `mapstructure:"host" yaml:"host" json:"host"`
	Port       int     `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin string  `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxBodyMB  int     `mapstructure:"max_body_mb" yaml:"max_body_mb" json:"max_body_mb"`
	TimeoutSec int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Recursive       bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	Format          string `mapstructure:"format" yaml:"format" json:"format"`
	Output          string `mapstructure:"output" yaml:"output" json:"output"`
	DBPath          string `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	params := quad.DefaultParams()
	opts := match.DefaultOptions()
	return Config{
		Matcher: MatcherConfig{
			MinSize:      params.MinSize,
			MaxSize:      params.MaxSize,
			MaxNeighbors: params.MaxNeighbors,
			Tolerance:    pipeline.DefaultTolerance,
			InlierRadius: opts.InlierRadius,
			MinInliers:   opts.MinInliers,
		},
		Spatial: SpatialConfig{
			Kind:     string(opts.Index),
			CellSize: 0,
		},
		Parallel: ParallelConfig{
			Workers:   0,
			BatchSize: 64,
		},
		Overlay: overlay.DefaultConfig(),
		Server: ServerConfig{
			Host:       "localhost",
			Port:       8080,
			CORSOrigin: "*",
			MaxBodyMB:  16,
			TimeoutSec: 30,
			RateLimit:  10,
		},
		Batch: BatchConfig{
			Recursive:       false,
			Format:          "text",
			ContinueOnError: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if err := c.QuadParams().Validate(); err != nil {
		return err
	}
	if err := c.EngineOptions().Validate(); err != nil {
		return err
	}
	if c.Matcher.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g: %w", c.Matcher.Tolerance, quad.ErrInvalidConfiguration)
	}
	if err := c.Overlay.Validate(); err != nil {
		return err
	}

	if c.Parallel.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d (must be positive)", c.Parallel.BatchSize)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxBodyMB <= 0 {
		return fmt.Errorf("invalid max body size: %d (must be positive)", c.Server.MaxBodyMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %g (must not be negative)", c.Server.RateLimit)
	}

	validFormats := []string{"text", "json", "csv"}
	if !contains(validFormats, c.Batch.Format) {
		return fmt.Errorf("invalid batch format: %s (must be one of: %s)", c.Batch.Format, strings.Join(validFormats, ", "))
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Log.Level, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.Log.Format) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.Log.Format, strings.Join(validLogFormats, ", "))
	}
	return nil
}

// QuadParams maps the matcher section onto quad enumeration parameters.
func (c *Config) QuadParams() quad.Params {
	return quad.Params{
		MinSize:      c.Matcher.MinSize,
		MaxSize:      c.Matcher.MaxSize,
		MaxNeighbors: c.Matcher.MaxNeighbors,
	}
}

// EngineOptions maps the matcher, spatial and parallel sections onto
// engine options.
func (c *Config) EngineOptions() match.Options {
	return match.Options{
		InlierRadius: c.Matcher.InlierRadius,
		MinInliers:   c.Matcher.MinInliers,
		Workers:      c.Parallel.Workers,
		Index:        match.IndexKind(c.Spatial.Kind),
		GridCell:     c.Spatial.CellSize,
	}
}

// ToPipelineConfig converts the configuration tree to a pipeline config.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Params:    c.QuadParams(),
		Options:   c.EngineOptions(),
		Tolerance: c.Matcher.Tolerance,
		Overlay:   c.Overlay,
	}
}

// SlogLevel maps the configured log level onto a slog level. Unknown
// strings fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Package server exposes the registration pipeline over HTTP: a JSON
// match endpoint, a WebSocket stream for interactive clients, health and
// config introspection, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fidlab/quadmatch/internal/config"
	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/pointset"
	"github.com/fidlab/quadmatch/internal/quad"
)

// matcher abstracts the pipeline so handlers can be tested without
// building real indexes.
type matcher interface {
	MatchSets(ctx context.Context, ref, other *pointset.Set, tolerance float64) (*match.Result, error)
	Config() pipeline.Config
}

// Server handles HTTP requests for point-set registration.
type Server struct {
	pipeline   matcher
	corsOrigin string
	maxBodyMB  int64
	timeout    time.Duration
	limiter    *rateLimiter
}

// New creates a server around an already built pipeline. Zero config
// fields fall back to the package defaults.
func New(cfg config.ServerConfig, pl *pipeline.Pipeline) (*Server, error) {
	if pl == nil {
		return nil, errors.New("server requires a pipeline")
	}

	s := &Server{
		pipeline:   pl,
		corsOrigin: cfg.CORSOrigin,
		maxBodyMB:  int64(cfg.MaxBodyMB),
		timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxBodyMB <= 0 {
		s.maxBodyMB = 16
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, defaultBurst(cfg.RateLimit))
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/config", s.corsMiddleware(s.configHandler))
	mux.HandleFunc("/v1/match", s.corsMiddleware(s.rateLimitMiddleware(s.matchHandler)))
	mux.HandleFunc("/v1/match/stream", s.matchStreamHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// ConfigResponse reports the engine settings the server registers with.
type ConfigResponse struct {
	Params    quad.Params   `json:"params"`
	Options   match.Options `json:"options"`
	Tolerance float64       `json:"tolerance"`
}

// Frame is the wire form of a localization frame. It matches the JSON
// frame file layout, so clients can post frame files unchanged.
type Frame struct {
	Width  float64      `json:"width,omitempty"`
	Height float64      `json:"height,omitempty"`
	Points []FramePoint `json:"points"`
}

// FramePoint is one bead localization in pixels.
type FramePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// toSet converts the wire frame into a point set, deriving the field of
// view from the point extent when the frame does not declare one.
func (f *Frame) toSet(name string) (*pointset.Set, error) {
	if len(f.Points) == 0 {
		return nil, fmt.Errorf("%s frame has no points", name)
	}
	pts := make([]geometry.Point, len(f.Points))
	for i, p := range f.Points {
		pts[i] = geometry.Point{X: p.X, Y: p.Y}
	}
	width, height := f.Width, f.Height
	if width <= 0 || height <= 0 {
		box := geometry.BoundingBox(pts)
		width, height = box.MaxX, box.MaxY
	}
	ps, err := pointset.New(pts, width, height)
	if err != nil {
		return nil, fmt.Errorf("%s frame: %w", name, err)
	}
	return ps, nil
}

// MatchRequest is the payload for POST /v1/match and for WebSocket
// stream messages.
type MatchRequest struct {
	Ref       Frame   `json:"ref"`
	Other     Frame   `json:"other"`
	Tolerance float64 `json:"tolerance,omitempty"`
}

// MatchResponse wraps a registration outcome for HTTP clients.
type MatchResponse struct {
	Success bool          `json:"success"`
	Result  *match.Result `json:"result,omitempty"`
	Grade   string        `json:"grade,omitempty"`
	Error   string        `json:"error,omitempty"`
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/quad"
	"github.com/fidlab/quadmatch/internal/spatial"
	"github.com/fidlab/quadmatch/internal/version"
)

// healthHandler handles health check requests.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// configHandler reports the effective engine configuration.
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.pipeline.Config()
	response := ConfigResponse{
		Params:    cfg.Params,
		Options:   cfg.Options,
		Tolerance: cfg.Tolerance,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode config response", "error", err)
	}
}

// matchHandler registers one posted frame pair.
func (s *Server) matchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyMB*1024*1024)

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, "Invalid match request: "+err.Error(), http.StatusBadRequest)
		return
	}

	ref, err := req.Ref.toSet("ref")
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	other, err := req.Other.toSet("other")
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.MatchSets(ctx, ref, other, req.Tolerance)
	duration := time.Since(start)

	if err != nil {
		matchRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeErrorResponse(w, err.Error(), matchStatusCode(err))
		return
	}

	matchRequestsTotal.WithLabelValues("http", "success").Inc()
	matchDuration.WithLabelValues("http").Observe(duration.Seconds())
	matchRatio.Observe(res.Ratio)

	response := MatchResponse{
		Success: true,
		Result:  res,
		Grade:   pipeline.RatioLabel(res.Ratio),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode match response", "error", err)
	}
}

// matchStatusCode maps registration errors onto HTTP status codes. A
// frame pair the engine cannot align is a lookup miss, not a server
// fault.
func matchStatusCode(err error) int {
	switch {
	case errors.Is(err, match.ErrNoMatchFound):
		return http.StatusNotFound
	case errors.Is(err, spatial.ErrInsufficientPoints),
		errors.Is(err, quad.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := MatchResponse{
		Success: false,
		Error:   message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

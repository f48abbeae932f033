package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fidlab/quadmatch/internal/config"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the registration HTTP server",
	Long: `Start an HTTP server exposing the registration pipeline.

Endpoints:
  POST /v1/match        register two frames posted as JSON
  GET  /v1/match/stream WebSocket stream for interactive clients
  GET  /v1/config       engine settings the server registers with
  GET  /healthz         health check
  GET  /metrics         Prometheus metrics

Examples:
  quadmatch serve
  quadmatch serve --port 9090 --host 0.0.0.0
  quadmatch serve --rate-limit 50 --timeout 60s`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	serverConfig := cfg.Server

	if cmd.Flags().Changed("host") {
		serverConfig.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		serverConfig.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cors-origin") {
		serverConfig.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	if cmd.Flags().Changed("max-body-size") {
		serverConfig.MaxBodyMB, _ = cmd.Flags().GetInt("max-body-size")
	}
	if cmd.Flags().Changed("timeout") {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		serverConfig.TimeoutSec = int(timeout.Seconds())
	}
	if cmd.Flags().Changed("rate-limit") {
		serverConfig.RateLimit, _ = cmd.Flags().GetFloat64("rate-limit")
	}
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	if serverConfig.Port < 1 || serverConfig.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be between 1 and 65535)", serverConfig.Port)
	}

	return runServer(cmd.Context(), serverConfig, cfg, shutdownTimeout)
}

func runServer(ctx context.Context, serverConfig config.ServerConfig, cfg *config.Config, shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pl, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build registration pipeline: %w", err)
	}

	srv, err := server.New(serverConfig, pl)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port)
	timeout := time.Duration(serverConfig.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func addServeFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig().Server
	cmd.Flags().StringP("host", "H", defaults.Host, "Host to bind the server to")
	cmd.Flags().IntP("port", "p", defaults.Port, "Port to listen on")
	cmd.Flags().String("cors-origin", defaults.CORSOrigin, "Allowed CORS origin")
	cmd.Flags().Int("max-body-size", defaults.MaxBodyMB, "Maximum request body size in MB")
	cmd.Flags().Duration("timeout", time.Duration(defaults.TimeoutSec)*time.Second, "Request read/write timeout")
	cmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")
	cmd.Flags().Float64("rate-limit", defaults.RateLimit, "Match requests per second per client (0 disables)")
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

// GetServeCommand returns the serve command for testing purposes.
func GetServeCommand() *cobra.Command {
	return serveCmd
}

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/406112767/unimrcp-vosk-plugin/internal/config"
	"github.com/406112767/unimrcp-vosk-plugin/internal/decoder"
	"github.com/406112767/unimrcp-vosk-plugin/internal/media"
	"github.com/406112767/unimrcp-vosk-plugin/internal/observability"
	"github.com/406112767/unimrcp-vosk-plugin/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("model_path", cfg.ModelPath).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Recognition engine starting")

	// Load the shared model once; sessions hold read-only references to it
	model, err := decoder.Load(cfg.ModelPath)
	if err != nil {
		logger.Fatal().Err(err).Str("model_path", cfg.ModelPath).Msg("Failed to load model")
	}
	logger.Info().
		Int("sample_rate", model.SampleRate).
		Int("words", len(model.Words)).
		Msg("Model loaded")

	// Start the session worker
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	worker := session.NewWorker(model, cfg, logger)
	go worker.Run(workerCtx)

	// Create HTTP server
	mux := http.NewServeMux()

	// Media WebSocket handler
	mux.HandleFunc("/streams/media", media.Handler(cfg, worker))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	modelCheck := func(ctx context.Context) (bool, error) {
		if err := model.Validate(); err != nil {
			return false, err
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"model": modelCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// gRPC health service for the call-control layer
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.GRPCHealthAddr).Msg("Failed to listen for gRPC health service")
		}
		logger.Info().Str("addr", cfg.GRPCHealthAddr).Msg("gRPC health service listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("gRPC health service stopped")
		}
	}()

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/media", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	cancelWorker()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	grpcServer.GracefulStop()

	logger.Info().Msg("Server exited gracefully")
}

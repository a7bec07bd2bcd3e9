package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/GrupoSinergia/voip-agent/internal/ari"
	"github.com/GrupoSinergia/voip-agent/internal/audio"
	"github.com/GrupoSinergia/voip-agent/internal/capture"
	"github.com/GrupoSinergia/voip-agent/internal/config"
	"github.com/GrupoSinergia/voip-agent/internal/dialogue"
	"github.com/GrupoSinergia/voip-agent/internal/metrics"
	"github.com/GrupoSinergia/voip-agent/internal/pipeline"
	"github.com/GrupoSinergia/voip-agent/internal/server"
	"github.com/GrupoSinergia/voip-agent/internal/session"
	"github.com/GrupoSinergia/voip-agent/internal/stt"
	"github.com/GrupoSinergia/voip-agent/internal/tts"
	"github.com/GrupoSinergia/voip-agent/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voip-agent"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load local environment overrides if present
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("ari_url", cfg.ARI.URL),
		slog.String("ari_application", cfg.ARI.Application),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("chunk_duration", cfg.Audio.ChunkDuration),
		slog.String("vad_engine", cfg.VAD.Engine),
		slog.Float64("vad_threshold", float64(cfg.VAD.Threshold)),
		slog.String("stt_endpoint", cfg.STT.Endpoint),
		slog.String("tts_endpoint", cfg.TTS.Endpoint),
		slog.String("dialogue_webhook", cfg.Dialogue.WebhookURL),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Validate the detector configuration once before taking calls
	detectorFactory, err := vad.NewFactory(cfg.VAD, cfg.Audio.SampleRate)
	if err != nil {
		logger.Error("Failed to create voice detector factory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := detectorFactory(); err != nil {
		logger.Error("Voice detector self-check failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Connect to Asterisk
	ariClient := ari.NewClient(cfg.ARI, logger)
	if err := ariClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to ARI", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Capture stack
	guard := capture.NewGuard()
	recorder := capture.NewRecorder(ariClient, guard, cfg.Agent.RecordingDir, cfg.Audio.SampleRate, cfg.Audio.GetCaptureWaitMargin(), logger)

	// Inference clients
	sttClient, err := stt.NewClient(cfg.STT)
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ttsClient, err := tts.NewClient(cfg.TTS)
	if err != nil {
		logger.Error("Failed to create synthesis client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dialogueClient, err := dialogue.NewClient(cfg.Dialogue, logger)
	if err != nil {
		logger.Error("Failed to create dialogue client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Playback artifact store under the platform sounds directory
	store, err := audio.NewFileStore(cfg.Agent.SoundsDir, cfg.Agent.PlaybackGain, logger)
	if err != nil {
		logger.Error("Failed to create audio store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Turn pipeline
	turns := pipeline.New(sttClient, dialogueClient, ttsClient, store, cfg.TTS, cfg.Audio.SampleRate, appMetrics, logger)
	turns.Prewarm(ctx)

	// Session registry and event dispatch
	registry := session.NewRegistry(ariClient, recorder, turns, store, guard, detectorFactory, cfg, appMetrics, logger)
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		registry.Run(dispatchCtx, ariClient.Events())
	}()
	logger.Info("Session registry started")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, registry, sttClient, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for calls...")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop event dispatch so no new session can appear mid-shutdown
	stopDispatch()
	<-dispatchDone

	// Hang up live calls and wait for their sessions
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	registry.Shutdown(shutdownCtx)
	shutdownCancel()

	// Stop the event stream and the inference clients
	cancel()
	ariClient.Close()
	if err := sttClient.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}

	// Remove staged playback artifacts
	store.Close()

	// Get final statistics
	stats := sttClient.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

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

	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/assistant"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/audio"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/config"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/metrics"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/pipeline"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/server"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/synthesis"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "audio-gemini-chat"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load .env if present; API keys usually live there in development
	_ = godotenv.Load()

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
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("http_address", cfg.HTTP.Address),
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Float64("max_utterance_seconds", cfg.Capture.MaxUtteranceSeconds),
		slog.Int("max_sessions", cfg.Capture.MaxSessions),
		slog.Int("bitrate_kbps", cfg.Encoder.BitrateKbps),
		slog.Bool("vad_enabled", cfg.VAD.Enabled),
		slog.String("chat_model", cfg.Assistant.ChatModel),
		slog.Bool("synthesis_enabled", cfg.Synthesis.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize assistant client
	assistantClient, err := assistant.NewClient(assistant.Config{
		APIKey:          cfg.Assistant.APIKey,
		BaseURL:         cfg.Assistant.BaseURL,
		TranscribeModel: cfg.Assistant.TranscribeModel,
		ChatModel:       cfg.Assistant.ChatModel,
		Instruction:     cfg.Assistant.Instruction,
		Language:        cfg.Assistant.Language,
		Temperature:     float32(cfg.Assistant.Temperature),
		Timeout:         cfg.Assistant.GetTimeoutDuration(),
		MaxRetries:      cfg.Assistant.MaxRetries,
		MaxConcurrent:   cfg.Assistant.MaxConcurrent,
		OnRetry:         appMetrics.RecordAssistantRetry,
	})
	if err != nil {
		logger.Error("Failed to create assistant client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Assistant client initialized",
		slog.String("transcribe_model", cfg.Assistant.TranscribeModel),
		slog.String("chat_model", cfg.Assistant.ChatModel),
	)

	// Initialize synthesis client (if enabled)
	var synthesizer pipeline.Synthesizer
	if cfg.Synthesis.Enabled {
		synthesisClient, err := synthesis.NewClient(synthesis.Config{
			Endpoint: cfg.Synthesis.Endpoint,
			APIKey:   cfg.Synthesis.APIKey,
			Voice:    cfg.Synthesis.Voice,
			Timeout:  cfg.Synthesis.GetTimeoutDuration(),
		})
		if err != nil {
			logger.Error("Failed to create synthesis client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		synthesizer = synthesisClient
		logger.Info("Synthesis client initialized",
			slog.String("endpoint", cfg.Synthesis.Endpoint),
			slog.String("voice", cfg.Synthesis.Voice),
		)
	}

	// Initialize speech gate (if enabled)
	var gate *vad.Gate
	if cfg.VAD.Enabled {
		gate, err = vad.NewGate(cfg.VAD.Threshold, cfg.VAD.WindowSize)
		if err != nil {
			logger.Error("Failed to create speech gate", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Speech gate initialized",
			slog.Float64("threshold", cfg.VAD.Threshold),
			slog.Int("window_size", cfg.VAD.WindowSize),
		)
	}

	// Initialize processing pipeline
	pipelineConfig := pipeline.Config{
		Encoder: audio.EncoderConfig{
			Channels:    cfg.Encoder.Channels,
			SampleRate:  cfg.Capture.SampleRate,
			BitrateKbps: cfg.Encoder.BitrateKbps,
		},
	}
	proc := pipeline.New(logger, pipelineConfig, gate, assistantClient, synthesizer, appMetrics)
	logger.Info("Processing pipeline initialized")

	// Initialize session manager
	sessionMgr := pipeline.NewManager(logger, pipeline.ManagerConfig{
		MaxSessions:    cfg.Capture.MaxSessions,
		SessionTimeout: cfg.Capture.GetSessionTimeoutDuration(),
		MaxUtterance:   cfg.Capture.GetMaxUtteranceDuration(),
	}, appMetrics)
	logger.Info("Session manager initialized",
		slog.Duration("session_timeout", cfg.Capture.GetSessionTimeoutDuration()),
		slog.Int("max_sessions", cfg.Capture.MaxSessions),
	)

	// Initialize and start HTTP API server
	httpServer := server.New(logger, cfg, proc, sessionMgr, assistantClient, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Stop session manager (discard live captures and stop background routines)
	sessionMgr.Stop()

	// Close assistant client (wait for in-flight exchanges)
	if err := assistantClient.Close(); err != nil {
		logger.Warn("Error closing assistant client", slog.String("error", err.Error()))
	}

	// Get final statistics
	pipelineStats := proc.GetStats()
	assistantStats := assistantClient.GetStats()
	logger.Info("Final service statistics",
		slog.Uint64("utterances_processed", pipelineStats.Processed),
		slog.Uint64("utterances_failed", pipelineStats.Failed),
		slog.Uint64("silence_skipped", pipelineStats.Skipped),
		slog.Uint64("assistant_exchanges", assistantStats.TotalExchanges),
		slog.Float64("assistant_success_rate", assistantStats.SuccessRate),
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

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
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
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

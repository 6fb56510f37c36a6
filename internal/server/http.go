package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/assistant"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/config"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/metrics"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/pipeline"
)

// maxUploadBytes caps the size of an uploaded waveform (32 MB)
const maxUploadBytes = 32 << 20

// Server provides the HTTP API for utterance processing and monitoring
type Server struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	pipeline *pipeline.Pipeline
	sessions *pipeline.Manager
	client   *assistant.Client // may be nil when the responder is faked
	metrics  *metrics.Metrics

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// New creates the HTTP API server
func New(logger *slog.Logger, appConfig *config.Config, p *pipeline.Pipeline,
	sessions *pipeline.Manager, client *assistant.Client, m *metrics.Metrics) *Server {

	s := &Server{
		logger:    logger,
		config:    appConfig,
		pipeline:  p,
		sessions:  sessions,
		client:    client,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures HTTP API routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Utterance processing
	mux.HandleFunc("/v1/utterance", s.withMetrics("/v1/utterance", s.handleUtterance))
	mux.HandleFunc("/v1/utterance/stream", s.handleStream)

	// Health check endpoint
	mux.HandleFunc("/health", s.withMetrics("/health", s.handleHealth))

	// Sessions monitoring
	mux.HandleFunc("/sessions", s.withMetrics("/sessions", s.handleSessions))

	// Configuration endpoint
	mux.HandleFunc("/config", s.withMetrics("/config", s.handleConfig))

	// Statistics endpoints
	mux.HandleFunc("/stats", s.withMetrics("/stats", s.handleStats))
	mux.HandleFunc("/stats/assistant", s.withMetrics("/stats/assistant", s.handleAssistantStats))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", s.withMetrics("/", s.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (s *Server) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		s.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			s.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the server's HTTP handler (for tests)
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP API server...")

	return s.server.Shutdown(ctx)
}

// handleUtterance implements POST /v1/utterance. The request body is a
// complete mono 16-bit waveform container; the response carries the
// transcript, the reply text, and the synthesized reply audio.
func (s *Server) handleUtterance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wavData, err := readWaveform(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(wavData) > maxUploadBytes {
		http.Error(w, "Waveform too large", http.StatusRequestEntityTooLarge)
		return
	}

	result, err := s.pipeline.ProcessUtterance(r.Context(), wavData)
	if err != nil {
		s.logger.Warn("Utterance request failed", slog.String("error", err.Error()))
		http.Error(w, err.Error(), statusForPipelineError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// readWaveform extracts the container bytes from either a raw body or a
// multipart "file" field
func readWaveform(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("failed to parse multipart form: %w", err)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing \"file\" field: %w", err)
		}
		defer file.Close()

		return io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	return data, nil
}

// statusForPipelineError maps a pipeline stage failure to an HTTP status.
// Malformed input is the caller's fault; everything downstream is ours.
func statusForPipelineError(err error) int {
	if pipeline.IsInputError(err) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// handleHealth implements the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.startTime)
	pipelineStats := s.pipeline.GetStats()
	sessionStats := s.sessions.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "audio-gemini-chat",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"pipeline": map[string]interface{}{
				"status":    "running",
				"processed": pipelineStats.Processed,
				"failed":    pipelineStats.Failed,
				"skipped":   pipelineStats.Skipped,
			},
			"sessions": map[string]interface{}{
				"status": "running",
				"active": sessionStats.Active,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleSessions implements the /sessions endpoint
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := s.sessions.GetAllSessions()

	response := map[string]interface{}{
		"total_sessions": len(infos),
		"timestamp":      time.Now().UTC(),
		"sessions":       infos,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":    s.config.HTTP.Port,
			"address": s.config.HTTP.Address,
		},
		"capture": map[string]interface{}{
			"sample_rate":           s.config.Capture.SampleRate,
			"max_utterance_seconds": s.config.Capture.MaxUtteranceSeconds,
			"session_timeout":       s.config.Capture.SessionTimeout,
			"max_sessions":          s.config.Capture.MaxSessions,
		},
		"encoder": map[string]interface{}{
			"channels":     s.config.Encoder.Channels,
			"bitrate_kbps": s.config.Encoder.BitrateKbps,
		},
		"vad": map[string]interface{}{
			"enabled":     s.config.VAD.Enabled,
			"threshold":   s.config.VAD.Threshold,
			"window_size": s.config.VAD.WindowSize,
		},
		"assistant": map[string]interface{}{
			"base_url":         s.config.Assistant.BaseURL,
			"transcribe_model": s.config.Assistant.TranscribeModel,
			"chat_model":       s.config.Assistant.ChatModel,
			"language":         s.config.Assistant.Language,
			"timeout":          s.config.Assistant.Timeout,
			"max_retries":      s.config.Assistant.MaxRetries,
			"max_concurrent":   s.config.Assistant.MaxConcurrent,
			// Note: API key is intentionally omitted for security
		},
		"synthesis": map[string]interface{}{
			"enabled":  s.config.Synthesis.Enabled,
			"endpoint": s.config.Synthesis.Endpoint,
			"voice":    s.config.Synthesis.Voice,
			"timeout":  s.config.Synthesis.Timeout,
		},
		"logging": map[string]interface{}{
			"level":  s.config.Logging.Level,
			"format": s.config.Logging.Format,
			"output": s.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"pipeline":  s.pipeline.GetStats(),
		"sessions":  s.sessions.GetStats(),
	}

	if s.client != nil {
		stats["assistant"] = s.client.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleAssistantStats implements the /stats/assistant endpoint
func (s *Server) handleAssistantStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.client == nil {
		http.Error(w, "Assistant client not configured", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.client.GetStats())
}

// handleRoot implements the / endpoint with API documentation
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Voice Assistant Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"POST /v1/utterance":       "Process a complete waveform utterance",
			"GET /v1/utterance/stream": "Websocket capture stream",
			"GET /health":              "Service health check",
			"GET /sessions":            "List all active capture sessions",
			"GET /config":              "Get service configuration",
			"GET /stats":               "Get service statistics",
			"GET /stats/assistant":     "Get assistant client statistics",
			"GET /metrics":             "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}

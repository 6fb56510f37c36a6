// Package metrics defines the Prometheus instrumentation for the
// voice-loop utterance service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the utterance service
type Metrics struct {
	// Utterance pipeline metrics
	UtterancesReceived  prometheus.Counter
	UtterancesProcessed prometheus.Counter
	UtterancesFailed    *prometheus.CounterVec
	UtteranceDuration   prometheus.Histogram

	// Encoder metrics
	EncodeDuration    prometheus.Histogram
	EncodeBlocks      prometheus.Histogram
	EncodeOutputBytes prometheus.Histogram

	// Speech gate metrics
	SpeechDetected  prometheus.Counter
	SilenceSkipped  prometheus.Counter

	// Assistant metrics
	AssistantRequests  prometheus.Counter
	AssistantSuccesses prometheus.Counter
	AssistantFailures  prometheus.Counter
	AssistantRetries   prometheus.Counter
	AssistantDuration  prometheus.Histogram

	// Synthesis metrics
	SynthesisRequests  prometheus.Counter
	SynthesisSuccesses prometheus.Counter
	SynthesisFailures  prometheus.Counter
	SynthesisDuration  prometheus.Histogram

	// Capture session metrics
	ActiveSessions   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsExpired  prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		UtterancesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_utterances_received_total",
			Help: "Total number of utterances received for processing",
		}),
		UtterancesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_utterances_processed_total",
			Help: "Total number of utterances processed successfully",
		}),
		UtterancesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceloop_utterances_failed_total",
			Help: "Total number of failed utterances by pipeline stage",
		}, []string{"stage"}),
		UtteranceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceloop_utterance_duration_seconds",
			Help:    "End-to-end utterance processing time",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		EncodeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceloop_encode_duration_seconds",
			Help:    "Time spent encoding PCM to MP3",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		EncodeBlocks: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceloop_encode_blocks",
			Help:    "Number of 1152-sample blocks per encoded utterance",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to ~4096 blocks
		}),
		EncodeOutputBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceloop_encode_output_bytes",
			Help:    "Size of encoded MP3 streams in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		SpeechDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_speech_detected_total",
			Help: "Total number of utterances where the gate found speech",
		}),
		SilenceSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_silence_skipped_total",
			Help: "Total number of all-silence utterances skipped before the model call",
		}),

		AssistantRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_assistant_requests_total",
			Help: "Total number of assistant exchanges started",
		}),
		AssistantSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_assistant_successes_total",
			Help: "Total number of successful assistant exchanges",
		}),
		AssistantFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_assistant_failures_total",
			Help: "Total number of failed assistant exchanges",
		}),
		AssistantRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_assistant_retries_total",
			Help: "Total number of assistant request retries",
		}),
		AssistantDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceloop_assistant_duration_seconds",
			Help:    "Duration of assistant exchanges",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		SynthesisRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_synthesis_requests_total",
			Help: "Total number of speech synthesis requests",
		}),
		SynthesisSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_synthesis_successes_total",
			Help: "Total number of successful speech synthesis requests",
		}),
		SynthesisFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_synthesis_failures_total",
			Help: "Total number of failed speech synthesis requests",
		}),
		SynthesisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceloop_synthesis_duration_seconds",
			Help:    "Duration of speech synthesis requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voiceloop_active_capture_sessions",
			Help: "Current number of live capture sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_capture_sessions_created_total",
			Help: "Total number of capture sessions created",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_capture_sessions_expired_total",
			Help: "Total number of capture sessions removed by the idle reaper",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceloop_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceloop_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceloop_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordUtteranceReceived increments the utterances received counter
func (m *Metrics) RecordUtteranceReceived() {
	m.UtterancesReceived.Inc()
}

// RecordUtteranceProcessed records a completed utterance
func (m *Metrics) RecordUtteranceProcessed(durationSeconds float64) {
	m.UtterancesProcessed.Inc()
	m.UtteranceDuration.Observe(durationSeconds)
}

// RecordUtteranceFailed records a failed utterance by pipeline stage
func (m *Metrics) RecordUtteranceFailed(stage string) {
	m.UtterancesFailed.WithLabelValues(stage).Inc()
}

// RecordEncode records one completed encode operation
func (m *Metrics) RecordEncode(durationSeconds float64, blocks int, outputBytes int) {
	m.EncodeDuration.Observe(durationSeconds)
	m.EncodeBlocks.Observe(float64(blocks))
	m.EncodeOutputBytes.Observe(float64(outputBytes))
}

// RecordGateResult records the speech gate outcome for one utterance
func (m *Metrics) RecordGateResult(hasSpeech bool) {
	if hasSpeech {
		m.SpeechDetected.Inc()
	} else {
		m.SilenceSkipped.Inc()
	}
}

// RecordAssistantRequest increments the assistant request counter
func (m *Metrics) RecordAssistantRequest() {
	m.AssistantRequests.Inc()
}

// RecordAssistantSuccess records a successful assistant exchange
func (m *Metrics) RecordAssistantSuccess(durationSeconds float64) {
	m.AssistantSuccesses.Inc()
	m.AssistantDuration.Observe(durationSeconds)
}

// RecordAssistantFailure records a failed assistant exchange
func (m *Metrics) RecordAssistantFailure(durationSeconds float64) {
	m.AssistantFailures.Inc()
	m.AssistantDuration.Observe(durationSeconds)
}

// RecordAssistantRetry increments the assistant retry counter
func (m *Metrics) RecordAssistantRetry() {
	m.AssistantRetries.Inc()
}

// RecordSynthesisRequest increments the synthesis request counter
func (m *Metrics) RecordSynthesisRequest() {
	m.SynthesisRequests.Inc()
}

// RecordSynthesisSuccess records a successful synthesis request
func (m *Metrics) RecordSynthesisSuccess(durationSeconds float64) {
	m.SynthesisSuccesses.Inc()
	m.SynthesisDuration.Observe(durationSeconds)
}

// RecordSynthesisFailure records a failed synthesis request
func (m *Metrics) RecordSynthesisFailure(durationSeconds float64) {
	m.SynthesisFailures.Inc()
	m.SynthesisDuration.Observe(durationSeconds)
}

// SetActiveSessions sets the current capture session count
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionExpired increments the sessions expired counter
func (m *Metrics) RecordSessionExpired() {
	m.SessionsExpired.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

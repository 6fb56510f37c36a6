package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/assistant"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/audio"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/metrics"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/vad"
)

// Pipeline stages, used for failure accounting and result timings
const (
	StageParse     = "parse"
	StageGate      = "gate"
	StageEncode    = "encode"
	StageAssistant = "assistant"
	StageSynthesis = "synthesis"
)

// Responder produces a transcript and reply for an encoded utterance
type Responder interface {
	Converse(ctx context.Context, mp3Data []byte, utteranceID string) (*assistant.Exchange, error)
}

// Synthesizer renders reply text as a playable waveform
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config contains pipeline configuration
type Config struct {
	Encoder audio.EncoderConfig
}

// Pipeline runs the voice loop for complete utterances. Each utterance is
// processed in a single pass with a fresh encoder instance; the pipeline
// itself is safe for concurrent use.
type Pipeline struct {
	logger      *slog.Logger
	config      Config
	gate        *vad.Gate // nil disables the speech gate
	responder   Responder
	synthesizer Synthesizer // nil disables reply synthesis
	metrics     *metrics.Metrics

	// Statistics
	processed uint64
	failed    uint64
	skipped   uint64

	mu sync.RWMutex
}

// Timings holds per-stage durations for one utterance
type Timings struct {
	Encode    time.Duration `json:"encode"`
	Assistant time.Duration `json:"assistant"`
	Synthesis time.Duration `json:"synthesis"`
	Total     time.Duration `json:"total"`
}

// Result represents one processed utterance
type Result struct {
	UtteranceID string  `json:"utterance_id"`
	HasSpeech   bool    `json:"has_speech"`
	Transcript  string  `json:"transcript"`
	Reply       string  `json:"reply"`
	ReplyAudio  []byte  `json:"reply_audio,omitempty"` // WAV container, base64 in JSON
	EncodedSize int     `json:"encoded_size_bytes"`
	Timings     Timings `json:"timings"`
}

// Stats represents pipeline statistics
type Stats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped_silence"`
}

// New creates a pipeline. gate and synthesizer may be nil to disable the
// speech gate and reply synthesis respectively.
func New(logger *slog.Logger, config Config, gate *vad.Gate, responder Responder,
	synthesizer Synthesizer, m *metrics.Metrics) *Pipeline {

	return &Pipeline{
		logger:      logger,
		config:      config,
		gate:        gate,
		responder:   responder,
		synthesizer: synthesizer,
		metrics:     m,
	}
}

// ProcessUtterance runs the full voice loop over one recorded waveform.
// The first failing stage aborts the whole operation; there is no partial
// recovery, and the caller decides whether to prompt a re-recording.
func (p *Pipeline) ProcessUtterance(ctx context.Context, wavData []byte) (*Result, error) {
	utteranceID := uuid.NewString()
	startTime := time.Now()

	p.metrics.RecordUtteranceReceived()

	result := &Result{UtteranceID: utteranceID}

	logger := p.logger.With(slog.String("utterance_id", utteranceID))
	logger.Debug("Processing utterance", slog.Int("wav_bytes", len(wavData)))

	samples, sampleRate, err := audio.DecodeWAV(wavData)
	if err != nil {
		return nil, p.fail(logger, StageParse, err)
	}

	// Speech gate: skip the model exchange for all-silence recordings
	if p.gate != nil {
		gateResult := p.gate.Analyze(samples)
		p.metrics.RecordGateResult(gateResult.HasSpeech)

		if !gateResult.HasSpeech {
			p.mu.Lock()
			p.skipped++
			p.mu.Unlock()

			result.Timings.Total = time.Since(startTime)
			logger.Info("No speech detected, skipping model exchange",
				slog.Float64("peak_rms", gateResult.PeakRMS),
			)
			return result, nil
		}
	}
	result.HasSpeech = true

	encodeStart := time.Now()
	mp3Data, err := audio.EncodeSamples(samples, encoderConfigFor(p.config.Encoder, sampleRate))
	if err != nil {
		return nil, p.fail(logger, StageEncode, err)
	}
	result.Timings.Encode = time.Since(encodeStart)
	result.EncodedSize = len(mp3Data)

	p.metrics.RecordEncode(result.Timings.Encode.Seconds(), audio.BlockCount(len(samples)), len(mp3Data))

	assistantStart := time.Now()
	p.metrics.RecordAssistantRequest()
	exchange, err := p.responder.Converse(ctx, mp3Data, utteranceID)
	if err != nil {
		p.metrics.RecordAssistantFailure(time.Since(assistantStart).Seconds())
		return nil, p.fail(logger, StageAssistant, err)
	}
	result.Timings.Assistant = time.Since(assistantStart)
	p.metrics.RecordAssistantSuccess(result.Timings.Assistant.Seconds())

	result.Transcript = exchange.Transcript
	result.Reply = exchange.Reply

	if p.synthesizer != nil && result.Reply != "" {
		synthesisStart := time.Now()
		p.metrics.RecordSynthesisRequest()

		replyAudio, err := p.synthesizer.Synthesize(ctx, result.Reply)
		if err != nil {
			p.metrics.RecordSynthesisFailure(time.Since(synthesisStart).Seconds())
			return nil, p.fail(logger, StageSynthesis, err)
		}

		result.Timings.Synthesis = time.Since(synthesisStart)
		p.metrics.RecordSynthesisSuccess(result.Timings.Synthesis.Seconds())
		result.ReplyAudio = replyAudio
	}

	result.Timings.Total = time.Since(startTime)

	p.mu.Lock()
	p.processed++
	p.mu.Unlock()
	p.metrics.RecordUtteranceProcessed(result.Timings.Total.Seconds())

	logger.Info("Utterance processed",
		slog.Int("encoded_bytes", result.EncodedSize),
		slog.Int("transcript_len", len(result.Transcript)),
		slog.Int("reply_len", len(result.Reply)),
		slog.Duration("total", result.Timings.Total),
	)

	return result, nil
}

// fail records a stage failure and wraps the error with its stage
func (p *Pipeline) fail(logger *slog.Logger, stage string, err error) error {
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()

	p.metrics.RecordUtteranceFailed(stage)

	logger.Error("Utterance processing failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)

	return fmt.Errorf("%s: %w", stage, err)
}

// IsInputError reports whether an utterance failure was caused by the
// submitted waveform rather than a downstream component
func IsInputError(err error) bool {
	return errors.Is(err, audio.ErrFormat)
}

// encoderConfigFor applies the container's sample rate to the configured
// encoder settings
func encoderConfigFor(cfg audio.EncoderConfig, sampleRate int) audio.EncoderConfig {
	cfg = cfg.WithDefaults()
	cfg.SampleRate = sampleRate
	return cfg
}

// GetStats returns current pipeline statistics
func (p *Pipeline) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Stats{
		Processed: p.processed,
		Failed:    p.failed,
		Skipped:   p.skipped,
	}
}

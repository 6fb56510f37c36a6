package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/assistant"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/audio"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/metrics"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/vad"
)

// Shared across the test package: promauto registers metrics in the global
// registry, so a second NewMetrics call would panic.
var testMetrics = metrics.NewMetrics()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sineWAV builds a mono 16-bit container holding a sine tone
func sineWAV(t *testing.T, sampleRate, numSamples int, amplitude float64) []byte {
	t.Helper()

	samples := make([]int16, numSamples)
	for i := range samples {
		samples[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	wavData, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	return wavData
}

type fakeResponder struct {
	exchange *assistant.Exchange
	err      error
	calls    int
	gotMP3   []byte
	gotID    string
}

func (f *fakeResponder) Converse(ctx context.Context, mp3Data []byte, utteranceID string) (*assistant.Exchange, error) {
	f.calls++
	f.gotMP3 = mp3Data
	f.gotID = utteranceID

	if f.err != nil {
		return nil, f.err
	}
	return f.exchange, nil
}

type fakeSynthesizer struct {
	wavData []byte
	err     error
	calls   int
	gotText string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	f.gotText = text

	if f.err != nil {
		return nil, f.err
	}
	return f.wavData, nil
}

func newTestPipeline(t *testing.T, gate *vad.Gate, responder Responder, synthesizer Synthesizer) *Pipeline {
	t.Helper()
	return New(testLogger(), Config{}, gate, responder, synthesizer, testMetrics)
}

func TestProcessUtterance(t *testing.T) {
	responder := &fakeResponder{
		exchange: &assistant.Exchange{Transcript: "what is the weather", Reply: "It is sunny."},
	}
	synthesizer := &fakeSynthesizer{wavData: sineWAV(t, 16000, 1600, 0.3)}

	p := newTestPipeline(t, nil, responder, synthesizer)

	result, err := p.ProcessUtterance(context.Background(), sineWAV(t, 32000, 32000, 0.5))
	if err != nil {
		t.Fatalf("ProcessUtterance failed: %v", err)
	}

	if result.UtteranceID == "" {
		t.Error("Expected a non-empty utterance ID")
	}

	if !result.HasSpeech {
		t.Error("Expected HasSpeech without a gate")
	}

	if result.Transcript != "what is the weather" {
		t.Errorf("Unexpected transcript: %q", result.Transcript)
	}

	if result.Reply != "It is sunny." {
		t.Errorf("Unexpected reply: %q", result.Reply)
	}

	if len(result.ReplyAudio) == 0 {
		t.Error("Expected synthesized reply audio")
	}

	if result.EncodedSize == 0 || len(responder.gotMP3) != result.EncodedSize {
		t.Errorf("Encoded size mismatch: result=%d responder=%d", result.EncodedSize, len(responder.gotMP3))
	}

	if responder.gotID != result.UtteranceID {
		t.Errorf("Responder got ID %q, result has %q", responder.gotID, result.UtteranceID)
	}

	if synthesizer.gotText != "It is sunny." {
		t.Errorf("Synthesizer got text %q", synthesizer.gotText)
	}

	stats := p.GetStats()
	if stats.Processed != 1 {
		t.Errorf("Expected 1 processed, got %d", stats.Processed)
	}
}

func TestProcessUtteranceInvalidContainer(t *testing.T) {
	responder := &fakeResponder{}
	p := newTestPipeline(t, nil, responder, nil)

	_, err := p.ProcessUtterance(context.Background(), []byte("not a waveform"))
	if err == nil {
		t.Fatal("Expected error for invalid container")
	}

	if !errors.Is(err, audio.ErrFormat) {
		t.Errorf("Expected ErrFormat in chain, got %v", err)
	}

	if !strings.HasPrefix(err.Error(), StageParse) {
		t.Errorf("Expected %q stage prefix, got %q", StageParse, err.Error())
	}

	if responder.calls != 0 {
		t.Error("Responder must not be called for an invalid container")
	}
}

func TestProcessUtteranceSilenceSkipped(t *testing.T) {
	gate, err := vad.NewGate(0.05, 512)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	responder := &fakeResponder{}
	p := newTestPipeline(t, gate, responder, nil)

	// All-zero samples never cross the gate threshold
	silence, err := audio.EncodeWAV(make([]int16, 16000), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	result, err := p.ProcessUtterance(context.Background(), silence)
	if err != nil {
		t.Fatalf("ProcessUtterance failed: %v", err)
	}

	if result.HasSpeech {
		t.Error("Expected HasSpeech=false for silence")
	}

	if result.Transcript != "" || result.Reply != "" {
		t.Error("Expected empty transcript and reply for skipped utterance")
	}

	if responder.calls != 0 {
		t.Error("Responder must not be called for silence")
	}

	if p.GetStats().Skipped == 0 {
		t.Error("Expected skipped counter to increase")
	}
}

func TestProcessUtteranceAssistantFailure(t *testing.T) {
	responder := &fakeResponder{err: fmt.Errorf("model unavailable")}
	p := newTestPipeline(t, nil, responder, nil)

	_, err := p.ProcessUtterance(context.Background(), sineWAV(t, 32000, 4000, 0.5))
	if err == nil {
		t.Fatal("Expected error from assistant stage")
	}

	if !strings.HasPrefix(err.Error(), StageAssistant) {
		t.Errorf("Expected %q stage prefix, got %q", StageAssistant, err.Error())
	}

	if p.GetStats().Failed == 0 {
		t.Error("Expected failed counter to increase")
	}
}

func TestProcessUtteranceSynthesisFailure(t *testing.T) {
	responder := &fakeResponder{exchange: &assistant.Exchange{Transcript: "hi", Reply: "hello"}}
	synthesizer := &fakeSynthesizer{err: fmt.Errorf("engine down")}

	p := newTestPipeline(t, nil, responder, synthesizer)

	_, err := p.ProcessUtterance(context.Background(), sineWAV(t, 32000, 4000, 0.5))
	if err == nil {
		t.Fatal("Expected error from synthesis stage")
	}

	if !strings.HasPrefix(err.Error(), StageSynthesis) {
		t.Errorf("Expected %q stage prefix, got %q", StageSynthesis, err.Error())
	}
}

func TestProcessUtteranceNoSynthesizer(t *testing.T) {
	responder := &fakeResponder{exchange: &assistant.Exchange{Transcript: "hi", Reply: "hello"}}
	p := newTestPipeline(t, nil, responder, nil)

	result, err := p.ProcessUtterance(context.Background(), sineWAV(t, 32000, 4000, 0.5))
	if err != nil {
		t.Fatalf("ProcessUtterance failed: %v", err)
	}

	if result.ReplyAudio != nil {
		t.Error("Expected no reply audio without a synthesizer")
	}
}

func TestSessionManager(t *testing.T) {
	mgr := NewManager(testLogger(), ManagerConfig{
		MaxSessions:    2,
		SessionTimeout: time.Minute,
		MaxUtterance:   time.Minute,
	}, testMetrics)
	defer mgr.Stop()

	session, err := mgr.CreateSession(16000)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, exists := mgr.GetSession(session.ID)
	if !exists || got.ID != session.ID {
		t.Fatal("Expected to retrieve the created session")
	}

	if err := session.Recorder.AppendFrame([]byte{0x01, 0x00, 0x02, 0x00}); err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	session.Touch()

	info := session.Info()
	if info.Frames != 1 {
		t.Errorf("Expected 1 frame in session info, got %d", info.Frames)
	}
	if info.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", info.SampleRate)
	}

	if _, err := mgr.CreateSession(16000); err != nil {
		t.Fatalf("Second CreateSession failed: %v", err)
	}

	if _, err := mgr.CreateSession(16000); err == nil {
		t.Error("Expected error when session limit is reached")
	}

	if !mgr.RemoveSession(session.ID) {
		t.Error("Expected RemoveSession to report success")
	}

	if mgr.RemoveSession(session.ID) {
		t.Error("Expected RemoveSession to fail for a removed session")
	}

	stats := mgr.GetStats()
	if stats.Active != 1 {
		t.Errorf("Expected 1 active session, got %d", stats.Active)
	}
	if stats.Created != 2 {
		t.Errorf("Expected 2 created sessions, got %d", stats.Created)
	}
}

func TestSessionManagerExpiry(t *testing.T) {
	mgr := NewManager(testLogger(), ManagerConfig{
		MaxSessions:    10,
		SessionTimeout: 10 * time.Millisecond,
		MaxUtterance:   time.Minute,
	}, testMetrics)
	defer mgr.Stop()

	if _, err := mgr.CreateSession(16000); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	mgr.cleanupExpiredSessions()

	if count := mgr.GetActiveSessionCount(); count != 0 {
		t.Errorf("Expected 0 active sessions after expiry, got %d", count)
	}

	if mgr.GetStats().Expired != 1 {
		t.Errorf("Expected 1 expired session, got %d", mgr.GetStats().Expired)
	}
}

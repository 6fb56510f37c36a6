package vad

import (
	"math"
	"testing"
)

func tone(amplitude float64, sampleRate int, duration float64) []int16 {
	numSamples := int(float64(sampleRate) * duration)
	samples := make([]int16, numSamples)

	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(sampleRate)
		samples[i] = int16(amplitude * 32767.0 * math.Sin(2*math.Pi*440.0*t))
	}

	return samples
}

func TestNewGateValidation(t *testing.T) {
	if _, err := NewGate(1.5, 512); err == nil {
		t.Error("Expected error for threshold above 1")
	}

	if _, err := NewGate(-0.1, 512); err == nil {
		t.Error("Expected error for negative threshold")
	}

	if _, err := NewGate(0.05, 0); err == nil {
		t.Error("Expected error for zero window size")
	}
}

func TestGateSilence(t *testing.T) {
	gate, err := NewGate(0.05, 512)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	result := gate.Analyze(make([]int16, 16000))

	if result.HasSpeech {
		t.Error("Silence must not register as speech")
	}

	if result.SpeechRatio != 0 {
		t.Errorf("Expected speech ratio 0, got %f", result.SpeechRatio)
	}

	if result.PeakRMS != 0 {
		t.Errorf("Expected peak RMS 0, got %f", result.PeakRMS)
	}
}

func TestGateLoudTone(t *testing.T) {
	gate, err := NewGate(0.05, 512)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	result := gate.Analyze(tone(0.5, 16000, 1.0))

	if !result.HasSpeech {
		t.Error("Loud tone must register as speech")
	}

	if result.SpeechRatio < 0.9 {
		t.Errorf("Expected nearly all windows above threshold, got ratio %f", result.SpeechRatio)
	}

	// A 0.5 amplitude sine has RMS around 0.35
	if result.PeakRMS < 0.3 || result.PeakRMS > 0.4 {
		t.Errorf("Unexpected peak RMS %f", result.PeakRMS)
	}
}

func TestGateEmptyUtterance(t *testing.T) {
	gate, err := NewGate(0.05, 512)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	result := gate.Analyze(nil)

	if result.HasSpeech {
		t.Error("Empty utterance must not register as speech")
	}

	if result.Windows != 0 {
		t.Errorf("Expected 0 windows, got %d", result.Windows)
	}
}

func TestGateWindowCount(t *testing.T) {
	gate, err := NewGate(0.05, 512)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	// 1200 samples at window size 512: two full windows plus one short
	result := gate.Analyze(make([]int16, 1200))

	if result.Windows != 3 {
		t.Errorf("Expected 3 windows, got %d", result.Windows)
	}
}

func TestGateDeterministic(t *testing.T) {
	gate, err := NewGate(0.05, 512)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	samples := tone(0.1, 16000, 0.5)

	first := gate.Analyze(samples)
	second := gate.Analyze(samples)

	if first != second {
		t.Errorf("Analysis must be deterministic:\n first %+v\nsecond %+v", first, second)
	}
}

func TestGateStats(t *testing.T) {
	gate, err := NewGate(0.05, 512)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	gate.Analyze(tone(0.5, 16000, 0.5))    // speech
	gate.Analyze(make([]int16, 8000))      // silence

	stats := gate.GetStats()

	if stats.TotalUtterances != 2 {
		t.Errorf("Expected 2 utterances, got %d", stats.TotalUtterances)
	}

	if stats.SpeechUtterances != 1 {
		t.Errorf("Expected 1 speech utterance, got %d", stats.SpeechUtterances)
	}

	if stats.SpeechPercentage != 50 {
		t.Errorf("Expected 50%% speech, got %f", stats.SpeechPercentage)
	}
}

package vad

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Gate analyzes recorded utterances for speech presence using windowed RMS
// energy. Analysis is deterministic for a given threshold and window size.
type Gate struct {
	threshold  float64 // Normalized RMS threshold (0.0 - 1.0)
	windowSize int     // Samples per analysis window

	// Statistics
	totalUtterances  uint64
	speechUtterances uint64
	lastAnalyzed     time.Time

	mu sync.RWMutex
}

// Result represents the outcome of analyzing one utterance
type Result struct {
	HasSpeech   bool    `json:"has_speech"`   // Whether any window crossed the threshold
	SpeechRatio float64 `json:"speech_ratio"` // Fraction of windows above threshold
	PeakRMS     float64 `json:"peak_rms"`     // Highest window RMS (0.0 - 1.0)
	Windows     int     `json:"windows"`      // Number of windows analyzed
}

// GateStats represents gate statistics for monitoring
type GateStats struct {
	Threshold        float64   `json:"threshold"`
	WindowSize       int       `json:"window_size"`
	TotalUtterances  uint64    `json:"total_utterances"`
	SpeechUtterances uint64    `json:"speech_utterances"`
	SpeechPercentage float64   `json:"speech_percentage"`
	LastAnalyzed     time.Time `json:"last_analyzed"`
}

// NewGate creates a speech presence gate
func NewGate(threshold float64, windowSize int) (*Gate, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}

	return &Gate{
		threshold:  threshold,
		windowSize: windowSize,
	}, nil
}

// Analyze computes windowed RMS energy over the utterance. The final window
// may be shorter than the configured size. An empty utterance has no speech.
func (g *Gate) Analyze(samples []int16) Result {
	result := Result{}

	speechWindows := 0

	for start := 0; start < len(samples); start += g.windowSize {
		end := start + g.windowSize
		if end > len(samples) {
			end = len(samples)
		}

		rms := windowRMS(samples[start:end])
		result.Windows++

		if rms > result.PeakRMS {
			result.PeakRMS = rms
		}

		if rms >= g.threshold {
			speechWindows++
		}
	}

	if result.Windows > 0 {
		result.SpeechRatio = float64(speechWindows) / float64(result.Windows)
	}
	result.HasSpeech = speechWindows > 0

	g.mu.Lock()
	g.totalUtterances++
	if result.HasSpeech {
		g.speechUtterances++
	}
	g.lastAnalyzed = time.Now()
	g.mu.Unlock()

	return result
}

// windowRMS computes the RMS energy of a sample window normalized to [0, 1]
func windowRMS(window []int16) float64 {
	if len(window) == 0 {
		return 0
	}

	var sum float64
	for _, s := range window {
		v := float64(s) / 32768.0
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(window)))
}

// Threshold returns the configured RMS threshold
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// GetStats returns current gate statistics
func (g *Gate) GetStats() GateStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	speechPct := float64(0)
	if g.totalUtterances > 0 {
		speechPct = float64(g.speechUtterances) / float64(g.totalUtterances) * 100
	}

	return GateStats{
		Threshold:        g.threshold,
		WindowSize:       g.windowSize,
		TotalUtterances:  g.totalUtterances,
		SpeechUtterances: g.speechUtterances,
		SpeechPercentage: speechPct,
		LastAnalyzed:     g.lastAnalyzed,
	}
}

package audio

import (
	"fmt"
	"sync"
	"time"
)

// Recorder accumulates streamed PCM frames into one complete utterance
// waveform. The capture transport delivers frames in order, so the recorder
// only appends; it enforces whole-sample frames and a maximum utterance
// length so a runaway client cannot grow the buffer without bound.
type Recorder struct {
	sampleRate int
	maxSamples int

	pcm        []byte
	frames     uint64
	dropped    uint64
	createdAt  time.Time
	lastUpdate time.Time

	mu sync.RWMutex
}

// RecorderStats represents recorder state for monitoring
type RecorderStats struct {
	SampleRate    int           `json:"sample_rate"`
	Frames        uint64        `json:"frames"`
	DroppedFrames uint64        `json:"dropped_frames"`
	Samples       int           `json:"samples"`
	Duration      time.Duration `json:"duration"`
	LastUpdate    time.Time     `json:"last_update"`
}

// NewRecorder creates a recorder for one utterance. maxDuration bounds the
// recorded audio length; frames past the cap are rejected.
func NewRecorder(sampleRate int, maxDuration time.Duration) (*Recorder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if maxDuration <= 0 {
		return nil, fmt.Errorf("max duration must be positive, got %s", maxDuration)
	}

	maxSamples := int(float64(sampleRate) * maxDuration.Seconds())
	now := time.Now()

	return &Recorder{
		sampleRate: sampleRate,
		maxSamples: maxSamples,
		pcm:        make([]byte, 0, sampleRate*4), // pre-allocate ~2s of 16-bit audio
		createdAt:  now,
		lastUpdate: now,
	}, nil
}

// AppendFrame appends one PCM frame of little-endian 16-bit samples
func (r *Recorder) AppendFrame(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(data)%2 != 0 {
		r.dropped++
		return fmt.Errorf("frame length must be even (got %d bytes)", len(data))
	}

	if (len(r.pcm)+len(data))/2 > r.maxSamples {
		r.dropped++
		return fmt.Errorf("utterance exceeds maximum length of %d samples", r.maxSamples)
	}

	r.pcm = append(r.pcm, data...)
	r.frames++
	r.lastUpdate = time.Now()

	return nil
}

// Samples returns a copy of the recorded audio as 16-bit samples
func (r *Recorder) Samples() []int16 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	samples := make([]int16, len(r.pcm)/2)
	for i := range samples {
		samples[i] = int16(r.pcm[i*2]) | int16(r.pcm[i*2+1])<<8
	}

	return samples
}

// WAV assembles the recorded utterance into a waveform container
func (r *Recorder) WAV() ([]byte, error) {
	return EncodeWAV(r.Samples(), r.sampleRate)
}

// SampleRate returns the recorder's sample rate
func (r *Recorder) SampleRate() int {
	return r.sampleRate
}

// Duration returns the recorded audio duration
func (r *Recorder) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	samples := len(r.pcm) / 2
	return time.Duration(float64(samples) / float64(r.sampleRate) * float64(time.Second))
}

// LastUpdate returns the time of the most recent frame
func (r *Recorder) LastUpdate() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastUpdate
}

// GetStats returns current recorder statistics
func (r *Recorder) GetStats() RecorderStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	samples := len(r.pcm) / 2

	return RecorderStats{
		SampleRate:    r.sampleRate,
		Frames:        r.frames,
		DroppedFrames: r.dropped,
		Samples:       samples,
		Duration:      time.Duration(float64(samples) / float64(r.sampleRate) * float64(time.Second)),
		LastUpdate:    r.lastUpdate,
	}
}

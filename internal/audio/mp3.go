package audio

import (
	"fmt"
)

// BlockSize is the number of samples fed to the codec per encode step. It
// matches the MP3 frame granularity and must not be changed at this layer.
const BlockSize = 1152

// Encoder configuration defaults: mono 16 kHz input compressed at 128 kbps,
// the rate the transcription model receives.
const (
	DefaultChannels    = 1
	DefaultSampleRate  = 16000
	DefaultBitrateKbps = 128
)

// EncoderConfig configures the PCM-to-MP3 encoder
type EncoderConfig struct {
	Channels    int `yaml:"channels"`
	SampleRate  int `yaml:"sample_rate"`
	BitrateKbps int `yaml:"bitrate_kbps"`
}

// WithDefaults returns a config with default values applied to zero fields
func (c EncoderConfig) WithDefaults() EncoderConfig {
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BitrateKbps == 0 {
		c.BitrateKbps = DefaultBitrateKbps
	}
	return c
}

// Validate validates encoder configuration
func (c EncoderConfig) Validate() error {
	if c.Channels < 1 {
		return fmt.Errorf("channels must be at least 1, got %d", c.Channels)
	}

	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}

	if c.BitrateKbps <= 0 {
		return fmt.Errorf("bitrate_kbps must be positive, got %d", c.BitrateKbps)
	}

	return nil
}

// FrameEncoder is the block-level MP3 codec contract. EncodeBlock consumes
// up to BlockSize samples and returns zero or more compressed bytes; Flush
// drains anything still buffered in codec state. Implementations carry
// bit-reservoir state across blocks, so a FrameEncoder is single-use and
// must not be shared between encode operations.
type FrameEncoder interface {
	EncodeBlock(block []int16) ([]byte, error)
	Flush() ([]byte, error)
}

// BlockCount returns the number of encode steps required for a sample
// count: one per full block plus one for a trailing partial block.
func BlockCount(sampleCount int) int {
	return (sampleCount + BlockSize - 1) / BlockSize
}

// EncodeMP3 converts a mono 16-bit waveform container into a complete MP3
// stream. The container's declared sample rate is passed through to the
// codec unchanged. Parse failures wrap ErrFormat, codec failures wrap
// ErrEncoding; in both cases no partial output is returned.
func EncodeMP3(wavData []byte, cfg EncoderConfig) ([]byte, error) {
	samples, sampleRate, err := DecodeWAV(wavData)
	if err != nil {
		return nil, err
	}

	cfg = cfg.WithDefaults()
	cfg.SampleRate = sampleRate

	return EncodeSamples(samples, cfg)
}

// EncodeSamples compresses a raw sample sequence into a complete MP3
// stream using a fresh codec instance.
func EncodeSamples(samples []int16, cfg EncoderConfig) ([]byte, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	enc, err := newShineEncoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	return encodeBlocks(samples, enc)
}

// encodeBlocks drives a frame encoder over the sample sequence in
// BlockSize blocks, in order, then flushes. The final block may be short.
// Segment order is load-bearing: coded blocks are positionally dependent
// within the stream and share codec state, so blocks are never reordered.
func encodeBlocks(samples []int16, enc FrameEncoder) ([]byte, error) {
	// Rough output estimate; 1152 samples compress to a few hundred bytes
	out := make([]byte, 0, BlockCount(len(samples))*512)

	for start := 0; start < len(samples); start += BlockSize {
		end := start + BlockSize
		if end > len(samples) {
			end = len(samples)
		}

		segment, err := enc.EncodeBlock(samples[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: block at sample %d: %v", ErrEncoding, start, err)
		}

		out = append(out, segment...)
	}

	segment, err := enc.Flush()
	if err != nil {
		return nil, fmt.Errorf("%w: flush: %v", ErrEncoding, err)
	}

	return append(out, segment...), nil
}

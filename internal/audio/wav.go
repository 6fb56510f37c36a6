package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeader represents the canonical 44-byte header written for generated files
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// WAVInfo describes a parsed waveform container
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	DataOffset    int     `json:"data_offset"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumSamples    uint32  `json:"num_samples"`
	Duration      float64 `json:"duration_seconds"`
}

const riffHeaderSize = 12 // "RIFF" + size + "WAVE"

// EncodeWAV encodes PCM-16 samples into a mono WAV buffer. An empty sample
// slice is valid and produces a header-only file.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)
	fileSize := 36 + dataSize // data starts at byte offset 44

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     fileSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if len(samples) > 0 {
		if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
			return nil, fmt.Errorf("failed to write audio data: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// ParseWAV locates and validates the fmt and data chunks of a waveform
// container. The data chunk is discovered by scanning the chunk list, so
// containers with extra chunks (LIST, fact) parse correctly. All failures
// wrap ErrFormat.
func ParseWAV(data []byte) (*WAVInfo, error) {
	if len(data) < riffHeaderSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrFormat, riffHeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("%w: missing RIFF marker", ErrFormat)
	}

	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing WAVE marker", ErrFormat)
	}

	info := &WAVInfo{DataOffset: -1}
	haveFmt := false

	// Walk the chunk list. Each chunk is id(4) + size(4) + payload, with
	// payloads padded to even length.
	pos := riffHeaderSize
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		payloadStart := pos + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || payloadStart+16 > len(data) {
				return nil, fmt.Errorf("%w: fmt chunk truncated", ErrFormat)
			}
			audioFormat := binary.LittleEndian.Uint16(data[payloadStart : payloadStart+2])
			if audioFormat != 1 {
				return nil, fmt.Errorf("%w: unsupported audio format %d (only PCM is supported)", ErrFormat, audioFormat)
			}
			info.Channels = binary.LittleEndian.Uint16(data[payloadStart+2 : payloadStart+4])
			info.SampleRate = binary.LittleEndian.Uint32(data[payloadStart+4 : payloadStart+8])
			info.BitsPerSample = binary.LittleEndian.Uint16(data[payloadStart+14 : payloadStart+16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrFormat)
			}
			info.DataOffset = payloadStart
			info.DataSize = chunkSize
		}

		if info.DataOffset >= 0 {
			break
		}

		// Advance past the payload, honoring the even-byte padding rule
		pos = payloadStart + int(chunkSize)
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrFormat)
	}

	if info.DataOffset < 0 {
		return nil, fmt.Errorf("%w: missing data chunk", ErrFormat)
	}

	if info.SampleRate == 0 {
		return nil, fmt.Errorf("%w: sample rate is zero", ErrFormat)
	}

	if info.Channels != 1 {
		return nil, fmt.Errorf("%w: unsupported channel count %d (only mono is supported)", ErrFormat, info.Channels)
	}

	if info.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d (only 16-bit is supported)", ErrFormat, info.BitsPerSample)
	}

	if info.DataSize%2 != 0 {
		return nil, fmt.Errorf("%w: data length %d is not a whole number of 16-bit samples", ErrFormat, info.DataSize)
	}

	if info.DataOffset+int(info.DataSize) > len(data) {
		return nil, fmt.Errorf("%w: data chunk claims %d bytes at offset %d but buffer has %d",
			ErrFormat, info.DataSize, info.DataOffset, len(data))
	}

	info.NumSamples = info.DataSize / 2
	info.Duration = float64(info.NumSamples) / float64(info.SampleRate)

	return info, nil
}

// DecodeWAV decodes a waveform container into PCM-16 samples and the sample
// rate. A zero-length data region is valid and yields an empty slice.
func DecodeWAV(data []byte) ([]int16, int, error) {
	info, err := ParseWAV(data)
	if err != nil {
		return nil, 0, err
	}

	samples := make([]int16, info.NumSamples)
	region := data[info.DataOffset : info.DataOffset+int(info.DataSize)]
	for i := range samples {
		samples[i] = int16(region[i*2]) | int16(region[i*2+1])<<8
	}

	return samples, int(info.SampleRate), nil
}

// ValidateWAV checks that a buffer holds a parsable waveform container
// without decoding the sample data.
func ValidateWAV(data []byte) error {
	_, err := ParseWAV(data)
	return err
}

// GetWAVDuration returns the audio duration of a waveform container in seconds
func GetWAVDuration(data []byte) (float64, error) {
	info, err := ParseWAV(data)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

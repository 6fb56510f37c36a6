package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// sineWave generates a mono test tone
func sineWave(frequency float64, sampleRate int, duration float64) []int16 {
	numSamples := int(float64(sampleRate) * duration)
	samples := make([]int16, numSamples)

	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(sampleRate)
		samples[i] = int16(16383.0 * math.Sin(2*math.Pi*frequency*t))
	}

	return samples
}

func TestEncodeWAV(t *testing.T) {
	sampleRate := 16000
	samples := sineWave(440.0, sampleRate, 0.1)

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := 44 + len(samples)*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	info, err := ParseWAV(wavData)
	if err != nil {
		t.Fatalf("Generated WAV is invalid: %v", err)
	}

	if info.SampleRate != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}

	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}

	if info.DataOffset != 44 {
		t.Errorf("Expected data offset 44, got %d", info.DataOffset)
	}

	expectedDuration := float64(len(samples)) / float64(sampleRate)
	if math.Abs(info.Duration-expectedDuration) > 0.001 {
		t.Errorf("Expected duration %.3f, got %.3f", expectedDuration, info.Duration)
	}
}

func TestEncodeWAVEmptySamples(t *testing.T) {
	wavData, err := EncodeWAV(nil, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV with empty samples failed: %v", err)
	}

	info, err := ParseWAV(wavData)
	if err != nil {
		t.Fatalf("Header-only WAV is invalid: %v", err)
	}

	if info.NumSamples != 0 {
		t.Errorf("Expected 0 samples, got %d", info.NumSamples)
	}
}

func TestEncodeWAVInvalidSampleRate(t *testing.T) {
	if _, err := EncodeWAV([]int16{1, 2, 3}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodeWAV([]int16{1, 2, 3}, -8000); err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	originalSamples := []int16{100, -200, 300, -400, 500, -32768, 32767}
	sampleRate := 16000

	wavData, err := EncodeWAV(originalSamples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	samples, rate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, rate)
	}

	if len(samples) != len(originalSamples) {
		t.Fatalf("Expected %d samples, got %d", len(originalSamples), len(samples))
	}

	for i, s := range samples {
		if s != originalSamples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, originalSamples[i], s)
		}
	}
}

func TestDecodeWAVZeroLengthData(t *testing.T) {
	wavData, err := EncodeWAV(nil, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	samples, rate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("Zero-length data region should decode cleanly, got: %v", err)
	}

	if len(samples) != 0 {
		t.Errorf("Expected 0 samples, got %d", len(samples))
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
}

func TestParseWAVExtraChunk(t *testing.T) {
	// Container with a LIST chunk between fmt and data
	wavData, err := EncodeWAV([]int16{1, 2, 3, 4}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	list := make([]byte, 8+4)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 4)
	copy(list[8:12], "INFO")

	// Splice the LIST chunk in front of the data chunk (offset 36)
	spliced := make([]byte, 0, len(wavData)+len(list))
	spliced = append(spliced, wavData[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, wavData[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	info, err := ParseWAV(spliced)
	if err != nil {
		t.Fatalf("ParseWAV with extra chunk failed: %v", err)
	}

	if info.NumSamples != 4 {
		t.Errorf("Expected 4 samples, got %d", info.NumSamples)
	}

	if info.DataOffset != 36+len(list)+8 {
		t.Errorf("Expected data offset %d, got %d", 36+len(list)+8, info.DataOffset)
	}
}

func TestParseWAVMalformed(t *testing.T) {
	valid, err := EncodeWAV([]int16{1, 2, 3, 4}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{
			name:   "too short",
			mutate: func(d []byte) []byte { return d[:8] },
		},
		{
			name: "missing RIFF marker",
			mutate: func(d []byte) []byte {
				copy(d[0:4], "XXXX")
				return d
			},
		},
		{
			name: "missing WAVE marker",
			mutate: func(d []byte) []byte {
				copy(d[8:12], "XXXX")
				return d
			},
		},
		{
			name: "missing fmt chunk",
			mutate: func(d []byte) []byte {
				copy(d[12:16], "junk")
				return d
			},
		},
		{
			name: "missing data chunk",
			mutate: func(d []byte) []byte {
				copy(d[36:40], "junk")
				return d
			},
		},
		{
			name: "non-PCM format",
			mutate: func(d []byte) []byte {
				binary.LittleEndian.PutUint16(d[20:22], 3) // IEEE float
				return d
			},
		},
		{
			name: "stereo",
			mutate: func(d []byte) []byte {
				binary.LittleEndian.PutUint16(d[22:24], 2)
				return d
			},
		},
		{
			name: "8-bit depth",
			mutate: func(d []byte) []byte {
				binary.LittleEndian.PutUint16(d[34:36], 8)
				return d
			},
		},
		{
			name: "odd data length",
			mutate: func(d []byte) []byte {
				binary.LittleEndian.PutUint32(d[40:44], 7)
				return d
			},
		},
		{
			name: "data length past end of buffer",
			mutate: func(d []byte) []byte {
				binary.LittleEndian.PutUint32(d[40:44], 1<<20)
				return d
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, len(valid))
			copy(data, valid)
			data = tt.mutate(data)

			_, err := ParseWAV(data)
			if err == nil {
				t.Fatal("Expected parse error, got nil")
			}

			if !errors.Is(err, ErrFormat) {
				t.Errorf("Expected ErrFormat, got: %v", err)
			}
		})
	}
}

func TestGetWAVDuration(t *testing.T) {
	sampleRate := 16000
	samples := sineWave(440.0, sampleRate, 2.0)

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	duration, err := GetWAVDuration(wavData)
	if err != nil {
		t.Fatalf("GetWAVDuration failed: %v", err)
	}

	if math.Abs(duration-2.0) > 0.001 {
		t.Errorf("Expected duration 2.0s, got %.3fs", duration)
	}
}

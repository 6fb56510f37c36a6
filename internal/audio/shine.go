package audio

import (
	"bytes"
	"fmt"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
)

// shineEncoder adapts the shine MP3 codec to the FrameEncoder interface.
// A fresh instance is created per encode operation; the underlying codec
// keeps bit-reservoir state across blocks and is not safe for reuse.
//
// The codec consumes audio one frame pass at a time: 1152 samples for
// MPEG-1 rates (32/44.1/48 kHz), 576 for MPEG-2 rates (16/22.05/24 kHz).
// Its Write helper mis-strides multi-pass input and reads a full pass from
// whatever slice it is handed, so the adapter feeds it exactly one
// whole pass per call, zero-padding the final short pass into a buffer
// it owns.
type shineEncoder struct {
	enc            *shine.Encoder
	samplesPerPass int
	buf            bytes.Buffer
	pad            []int16
}

// newShineEncoder creates a codec instance for one encode operation.
// shine produces constant-bitrate output at its fixed default rate, so
// other bitrates are rejected rather than silently ignored, and only
// sample rates from the codec's MPEG table can be encoded at that rate.
func newShineEncoder(cfg EncoderConfig) (*shineEncoder, error) {
	if cfg.BitrateKbps != DefaultBitrateKbps {
		return nil, fmt.Errorf("unsupported bitrate %d kbps: codec encodes at %d kbps CBR",
			cfg.BitrateKbps, DefaultBitrateKbps)
	}

	if shine.CheckConfig(cfg.SampleRate, cfg.BitrateKbps) < 0 {
		return nil, fmt.Errorf("unsupported sample rate %d Hz for %d kbps output",
			cfg.SampleRate, cfg.BitrateKbps)
	}

	enc := shine.NewEncoder(cfg.SampleRate, cfg.Channels)

	return &shineEncoder{
		enc:            enc,
		samplesPerPass: int(enc.Mpeg.GranulesPerFrame) * shine.GRANULE_SIZE,
	}, nil
}

// EncodeBlock compresses one block of up to BlockSize samples, feeding the
// codec in whole frame passes
func (s *shineEncoder) EncodeBlock(block []int16) ([]byte, error) {
	if len(block) == 0 {
		return nil, nil
	}

	s.buf.Reset()

	for start := 0; start < len(block); start += s.samplesPerPass {
		pass := block[start:]
		if len(pass) > s.samplesPerPass {
			pass = pass[:s.samplesPerPass]
		}

		// The codec always reads a full pass from the slice it is handed;
		// a short final pass is copied into a zero-padded buffer so output
		// never depends on memory beyond the caller's samples.
		if len(pass) < s.samplesPerPass {
			if s.pad == nil {
				s.pad = make([]int16, s.samplesPerPass)
			}
			n := copy(s.pad, pass)
			for i := n; i < len(s.pad); i++ {
				s.pad[i] = 0
			}
			pass = s.pad
		}

		if err := s.enc.Write(&s.buf, pass); err != nil {
			return nil, err
		}
	}

	// The scratch buffer is reused on the next block
	segment := make([]byte, s.buf.Len())
	copy(segment, s.buf.Bytes())

	return segment, nil
}

// Flush completes the stream. Every pass handed to the codec is a whole
// frame, so no samples remain buffered between blocks.
func (s *shineEncoder) Flush() ([]byte, error) {
	return nil, nil
}

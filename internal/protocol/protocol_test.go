package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestHelloRoundTrip(t *testing.T) {
	data := MarshalHello(0, 16000)

	frame, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}

	if frame.Header.Type != FrameHello {
		t.Errorf("Expected hello frame, got type 0x%02X", frame.Header.Type)
	}

	if frame.Hello == nil {
		t.Fatal("Hello payload not parsed")
	}

	if frame.Hello.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", frame.Hello.SampleRate)
	}

	if frame.Hello.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", frame.Hello.Channels)
	}

	if frame.Hello.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", frame.Hello.BitsPerSample)
	}
}

func TestAudioRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	data := MarshalAudio(42, pcm)

	frame, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}

	if frame.Header.Type != FrameAudio {
		t.Errorf("Expected audio frame, got type 0x%02X", frame.Header.Type)
	}

	if frame.Header.Seq != 42 {
		t.Errorf("Expected sequence 42, got %d", frame.Header.Seq)
	}

	if !bytes.Equal(frame.Audio, pcm) {
		t.Errorf("Audio payload mismatch: expected %v, got %v", pcm, frame.Audio)
	}
}

func TestStopRoundTrip(t *testing.T) {
	data := MarshalStop(7)

	frame, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}

	if frame.Header.Type != FrameStop {
		t.Errorf("Expected stop frame, got type 0x%02X", frame.Header.Type)
	}

	if frame.Header.Seq != 7 {
		t.Errorf("Expected sequence 7, got %d", frame.Header.Seq)
	}
}

func TestParseFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "too short",
			data: []byte{0x56, 0x43, 0x01},
		},
		{
			name: "bad magic",
			data: func() []byte {
				d := MarshalStop(1)
				binary.BigEndian.PutUint16(d[0:2], 0xDEAD)
				return d
			}(),
		},
		{
			name: "bad version",
			data: func() []byte {
				d := MarshalStop(1)
				d[2] = 0x09
				return d
			}(),
		},
		{
			name: "unknown frame type",
			data: func() []byte {
				d := MarshalStop(1)
				d[3] = 0x7F
				return d
			}(),
		},
		{
			name: "hello payload truncated",
			data: MarshalHello(0, 16000)[:HeaderSize+3],
		},
		{
			name: "hello zero sample rate",
			data: func() []byte {
				d := MarshalHello(0, 16000)
				binary.BigEndian.PutUint32(d[HeaderSize:], 0)
				return d
			}(),
		},
		{
			name: "hello stereo",
			data: func() []byte {
				d := MarshalHello(0, 16000)
				d[HeaderSize+4] = 2
				return d
			}(),
		},
		{
			name: "hello 8-bit",
			data: func() []byte {
				d := MarshalHello(0, 16000)
				d[HeaderSize+5] = 8
				return d
			}(),
		},
		{
			name: "audio frame without payload",
			data: MarshalAudio(1, nil),
		},
		{
			name: "stop frame with payload",
			data: append(MarshalStop(1), 0xFF),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame(tt.data); err == nil {
				t.Error("Expected parse error, got nil")
			}
		})
	}
}

func TestHeaderValidate(t *testing.T) {
	valid := Header{Magic: Magic, Version: Version, Type: FrameAudio, Seq: 0}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid header rejected: %v", err)
	}
}

package protocol

import (
	"encoding/binary"
	"fmt"
)

// Capture framing constants
const (
	// Magic marks a capture frame ("VC")
	Magic = 0x5643

	// Version is the current framing version
	Version = 0x01

	// Frame types
	FrameHello = 0x01 // Declares the utterance audio parameters
	FrameAudio = 0x02 // Carries PCM sample bytes
	FrameStop  = 0x03 // Marks the utterance complete

	// Frame structure sizes
	HeaderSize       = 8 // 2 + 1 + 1 + 4 bytes
	HelloPayloadSize = 6 // 4 + 1 + 1 bytes
)

// Header represents the 8-byte capture frame header
// Layout: [Magic:2][Version:1][Type:1][Seq:4], big-endian
type Header struct {
	Magic   uint16 // Frame marker (0x5643)
	Version uint8  // Framing version
	Type    uint8  // 0x01=Hello, 0x02=Audio, 0x03=Stop
	Seq     uint32 // Frame sequence number within the utterance
}

// HelloPayload represents the 6-byte hello frame payload
// Layout: [SampleRate:4][Channels:1][BitsPerSample:1]
type HelloPayload struct {
	SampleRate    uint32 // Capture sample rate in Hz
	Channels      uint8  // Channel count (1 in this deployment)
	BitsPerSample uint8  // Sample width (16 in this deployment)
}

// Frame represents a fully parsed capture frame
type Frame struct {
	Header *Header
	Hello  *HelloPayload // Only set for hello frames
	Audio  []byte        // Only set for audio frames
}

// ParseHeader parses the 8-byte capture frame header
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	header := &Header{
		Magic:   binary.BigEndian.Uint16(data[0:2]),
		Version: data[2],
		Type:    data[3],
		Seq:     binary.BigEndian.Uint32(data[4:8]),
	}

	return header, nil
}

// Validate checks header marker, version, and frame type
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("invalid frame magic: expected 0x%04X, got 0x%04X", Magic, h.Magic)
	}

	if h.Version != Version {
		return fmt.Errorf("unsupported framing version: expected %d, got %d", Version, h.Version)
	}

	switch h.Type {
	case FrameHello, FrameAudio, FrameStop:
		return nil
	default:
		return fmt.Errorf("unknown frame type: 0x%02X", h.Type)
	}
}

// ParseHelloPayload parses the 6-byte hello frame payload
func ParseHelloPayload(data []byte) (*HelloPayload, error) {
	if len(data) < HelloPayloadSize {
		return nil, fmt.Errorf("hello payload too short: expected %d bytes, got %d",
			HelloPayloadSize, len(data))
	}

	payload := &HelloPayload{
		SampleRate:    binary.BigEndian.Uint32(data[0:4]),
		Channels:      data[4],
		BitsPerSample: data[5],
	}

	if payload.SampleRate == 0 {
		return nil, fmt.Errorf("hello declares zero sample rate")
	}

	if payload.Channels != 1 {
		return nil, fmt.Errorf("unsupported channel count: %d (only mono is supported)", payload.Channels)
	}

	if payload.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported sample width: %d (only 16-bit is supported)", payload.BitsPerSample)
	}

	return payload, nil
}

// ParseFrame parses a complete capture frame (header + payload)
func ParseFrame(data []byte) (*Frame, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if err := header.Validate(); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	frame := &Frame{Header: header}
	payload := data[HeaderSize:]

	switch header.Type {
	case FrameHello:
		hello, err := ParseHelloPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hello payload: %w", err)
		}
		frame.Hello = hello

	case FrameAudio:
		if len(payload) == 0 {
			return nil, fmt.Errorf("audio frame has no payload")
		}
		frame.Audio = make([]byte, len(payload))
		copy(frame.Audio, payload)

	case FrameStop:
		if len(payload) != 0 {
			return nil, fmt.Errorf("stop frame must have no payload, got %d bytes", len(payload))
		}
	}

	return frame, nil
}

// MarshalHello builds a hello frame declaring the utterance audio parameters
func MarshalHello(seq uint32, sampleRate int) []byte {
	buf := make([]byte, HeaderSize+HelloPayloadSize)
	putHeader(buf, FrameHello, seq)
	binary.BigEndian.PutUint32(buf[HeaderSize:], uint32(sampleRate))
	buf[HeaderSize+4] = 1  // mono
	buf[HeaderSize+5] = 16 // 16-bit
	return buf
}

// MarshalAudio builds an audio frame carrying PCM sample bytes
func MarshalAudio(seq uint32, pcm []byte) []byte {
	buf := make([]byte, HeaderSize+len(pcm))
	putHeader(buf, FrameAudio, seq)
	copy(buf[HeaderSize:], pcm)
	return buf
}

// MarshalStop builds a stop frame
func MarshalStop(seq uint32) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, FrameStop, seq)
	return buf
}

func putHeader(buf []byte, frameType uint8, seq uint32) {
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = Version
	buf[3] = frameType
	binary.BigEndian.PutUint32(buf[4:8], seq)
}

package audio

import "errors"

var (
	// ErrFormat indicates that an input buffer is not a parsable mono
	// 16-bit PCM waveform container. No output is produced.
	ErrFormat = errors.New("invalid waveform container")

	// ErrEncoding indicates that the MP3 codec rejected a sample block or
	// its configuration. Any segments produced before the failure are
	// discarded.
	ErrEncoding = errors.New("mp3 encoding failed")
)

// Package audio implements waveform container handling and the chunked
// PCM-to-MP3 encoder. It parses mono 16-bit WAV buffers, records streamed
// PCM frames into complete utterances, and compresses sample sequences in
// fixed-size blocks through a pluggable MP3 frame codec.
package audio

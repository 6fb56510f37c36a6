// Package synthesis implements the HTTP client for the speech synthesis
// engine. It posts reply text and receives a mono 16-bit waveform.
package synthesis

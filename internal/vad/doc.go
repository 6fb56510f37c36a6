// Package vad provides a lightweight energy-based speech presence gate.
// It performs windowed RMS analysis over a complete utterance so the
// pipeline can skip the remote model for all-silence recordings.
package vad

// Package pipeline sequences the voice loop for one utterance: speech
// gating, MP3 encoding, the generative model exchange, and speech
// synthesis of the reply. It also manages live capture sessions.
package pipeline

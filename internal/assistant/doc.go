// Package assistant implements the generative model client. It sends
// encoded utterances for transcription, requests a conversational reply,
// and manages rate limiting and retry with exponential backoff.
package assistant

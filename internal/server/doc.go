// Package server exposes the HTTP API: utterance submission, a websocket
// capture stream, monitoring endpoints, and Prometheus metrics.
package server

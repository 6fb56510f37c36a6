// Package protocol implements the binary framing used on the capture
// websocket. It handles header parsing and validation, hello payload
// extraction, and audio frame marshaling.
package protocol

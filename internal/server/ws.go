package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/pipeline"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/protocol"
)

// readDeadline bounds the wait for the next capture frame
const readDeadline = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	// Capture clients are same-origin browser pages or native tools
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream implements GET /v1/utterance/stream. The client opens a
// websocket, sends a hello frame declaring the audio parameters, streams
// audio frames, and finishes with a stop frame. The server replies with the
// processing result as a JSON text message, followed by the synthesized
// reply audio as a binary message when synthesis is enabled.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	session, err := s.captureUtterance(conn)
	if session != nil {
		defer s.sessions.RemoveSession(session.ID)
	}
	if err != nil {
		s.closeWithError(conn, err)
		return
	}

	wavData, err := session.Recorder.WAV()
	if err != nil {
		s.closeWithError(conn, fmt.Errorf("failed to assemble waveform: %w", err))
		return
	}

	result, err := s.pipeline.ProcessUtterance(r.Context(), wavData)
	if err != nil {
		s.closeWithError(conn, err)
		return
	}

	if err := s.writeResult(conn, result); err != nil {
		s.logger.Warn("Failed to deliver stream result",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// captureUtterance reads capture frames until a stop frame arrives. The
// returned session (when non-nil) must be removed by the caller.
func (s *Server) captureUtterance(conn *websocket.Conn) (*pipeline.Session, error) {
	var session *pipeline.Session
	var nextSeq uint32

	for {
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return session, fmt.Errorf("read failed: %w", err)
		}

		if messageType != websocket.BinaryMessage {
			return session, fmt.Errorf("expected binary capture frames")
		}

		frame, err := protocol.ParseFrame(data)
		if err != nil {
			return session, fmt.Errorf("bad capture frame: %w", err)
		}

		if frame.Header.Seq != nextSeq {
			return session, fmt.Errorf("out-of-order frame: expected seq %d, got %d",
				nextSeq, frame.Header.Seq)
		}
		nextSeq++

		switch frame.Header.Type {
		case protocol.FrameHello:
			if session != nil {
				return session, fmt.Errorf("duplicate hello frame")
			}

			session, err = s.sessions.CreateSession(int(frame.Hello.SampleRate))
			if err != nil {
				return nil, fmt.Errorf("failed to create session: %w", err)
			}

			s.logger.Debug("Capture stream opened",
				slog.String("session_id", session.ID),
				slog.Int("sample_rate", int(frame.Hello.SampleRate)),
			)

		case protocol.FrameAudio:
			if session == nil {
				return nil, fmt.Errorf("audio frame before hello")
			}

			if err := session.Recorder.AppendFrame(frame.Audio); err != nil {
				return session, fmt.Errorf("failed to append frame: %w", err)
			}
			session.Touch()

		case protocol.FrameStop:
			if session == nil {
				return nil, fmt.Errorf("stop frame before hello")
			}

			s.logger.Debug("Capture stream complete",
				slog.String("session_id", session.ID),
				slog.Duration("captured", session.Recorder.Duration()),
			)
			return session, nil
		}
	}
}

// streamError is the JSON error message sent before an abnormal close
type streamError struct {
	Error string `json:"error"`
}

func (s *Server) closeWithError(conn *websocket.Conn, err error) {
	s.logger.Warn("Capture stream failed", slog.String("error", err.Error()))

	payload, _ := json.Marshal(streamError{Error: err.Error()})
	conn.WriteMessage(websocket.TextMessage, payload)
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
}

// writeResult delivers the processing result: JSON first, then the reply
// audio as a separate binary message
func (s *Server) writeResult(conn *websocket.Conn, result *pipeline.Result) error {
	// The JSON message omits the audio; it travels as its own binary frame
	resultNoAudio := *result
	replyAudio := resultNoAudio.ReplyAudio
	resultNoAudio.ReplyAudio = nil

	payload, err := json.Marshal(&resultNoAudio)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if len(replyAudio) > 0 {
		if err := conn.WriteMessage(websocket.BinaryMessage, replyAudio); err != nil {
			return fmt.Errorf("failed to write reply audio: %w", err)
		}
	}

	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"
)

// Standalone mock of the assistant and synthesis APIs for local testing.
// Run with: go run mock_assistant_server.go
// Then point assistant.base_url at http://localhost:8090/v1 and
// synthesis.endpoint at http://localhost:8090/synthesize.

type transcriptionResponse struct {
	Text string `json:"text"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type synthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	size, _ := io.Copy(io.Discard, file)

	log.Printf("Transcription request: file=%s size=%d model=%s",
		header.Filename, size, r.FormValue("model"))

	// Simulate model latency
	time.Sleep(100 * time.Millisecond)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transcriptionResponse{
		Text: fmt.Sprintf("Mock transcript for %s (%d encoded bytes).", header.Filename, size),
	})
}

func chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request chatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lastUserMessage := ""
	for _, message := range request.Messages {
		if message.Role == "user" {
			lastUserMessage = message.Content
		}
	}

	log.Printf("Chat request: model=%s messages=%d", request.Model, len(request.Messages))

	time.Sleep(150 * time.Millisecond)

	response := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   request.Model,
	}
	response.Choices = append(response.Choices, struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}{
		Message: chatMessage{
			Role:    "assistant",
			Content: fmt.Sprintf("Mock reply to: %s", lastUserMessage),
		},
		FinishReason: "stop",
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func synthesizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request synthesisRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	log.Printf("Synthesis request: voice=%s text=%q", request.Voice, request.Text)

	// One second of a 440 Hz tone stands in for synthesized speech
	const sampleRate = 16000
	samples := make([]int16, sampleRate)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}

	wavData, err := encodeWAV(samples, sampleRate)
	if err != nil {
		http.Error(w, "Failed to build waveform", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Write(wavData)
}

// encodeWAV builds a minimal mono 16-bit container
func encodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	putUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	putUint32(buf[16:20], 16)
	putUint16(buf[20:22], 1) // PCM
	putUint16(buf[22:24], 1) // mono
	putUint32(buf[24:28], uint32(sampleRate))
	putUint32(buf[28:32], uint32(sampleRate*2))
	putUint16(buf[32:34], 2)
	putUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	putUint32(buf[40:44], uint32(dataSize))

	for i, sample := range samples {
		putUint16(buf[44+i*2:], uint16(sample))
	}

	return buf, nil
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func main() {
	http.HandleFunc("/v1/audio/transcriptions", transcribeHandler)
	http.HandleFunc("/v1/chat/completions", chatHandler)
	http.HandleFunc("/synthesize", synthesizeHandler)

	addr := ":8090"
	log.Printf("Mock assistant server listening on %s", addr)
	log.Printf("  POST /v1/audio/transcriptions")
	log.Printf("  POST /v1/chat/completions")
	log.Printf("  POST /synthesize")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

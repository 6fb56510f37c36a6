package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client talks to the generative model API. One Converse call covers a full
// exchange: transcribe the encoded utterance, then complete a reply.
type Client struct {
	config    Config
	api       *openai.Client
	semaphore chan struct{} // Rate limiting semaphore

	// Statistics
	totalExchanges   uint64
	successExchanges uint64
	failedExchanges  uint64
	totalRetries     uint64
	avgResponseTime  time.Duration

	mu sync.RWMutex
}

// Config contains assistant client configuration
type Config struct {
	APIKey          string
	BaseURL         string // Empty means the default API endpoint
	TranscribeModel string
	ChatModel       string
	Instruction     string // System instruction for the reply
	Language        string // Hint for the transcription model, may be empty
	Temperature     float32
	Timeout         time.Duration
	MaxRetries      int
	MaxConcurrent   int

	// OnRetry is invoked once per retried model call, may be nil. Used to
	// feed external counters alongside the client's own statistics.
	OnRetry func()
}

// Exchange represents one completed utterance exchange
type Exchange struct {
	Transcript     string        `json:"transcript"`
	Reply          string        `json:"reply"`
	TranscribeTime time.Duration `json:"transcribe_time"`
	ReplyTime      time.Duration `json:"reply_time"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalExchanges   uint64        `json:"total_exchanges"`
	SuccessExchanges uint64        `json:"success_exchanges"`
	FailedExchanges  uint64        `json:"failed_exchanges"`
	SuccessRate      float64       `json:"success_rate"`
	TotalRetries     uint64        `json:"total_retries"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
	ActiveExchanges  int           `json:"active_exchanges"`
}

// NewClient creates a new assistant client
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.TranscribeModel == "" {
		config.TranscribeModel = openai.Whisper1
	}

	if config.ChatModel == "" {
		config.ChatModel = "gpt-4o-mini"
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}

	return &Client{
		config:    config,
		api:       openai.NewClientWithConfig(apiConfig),
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Converse transcribes an encoded utterance and produces a reply. Both model
// calls share the retry budget and the per-exchange timeout.
func (c *Client) Converse(ctx context.Context, mp3Data []byte, utteranceID string) (*Exchange, error) {
	// Acquire semaphore for rate limiting
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalExchanges()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	exchange := &Exchange{}

	transcribeStart := time.Now()
	transcript, err := c.withRetry(ctx, func() (string, error) {
		return c.transcribe(ctx, mp3Data, utteranceID)
	})
	if err != nil {
		c.incrementFailedExchanges()
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	exchange.Transcript = transcript
	exchange.TranscribeTime = time.Since(transcribeStart)

	replyStart := time.Now()
	reply, err := c.withRetry(ctx, func() (string, error) {
		return c.complete(ctx, transcript)
	})
	if err != nil {
		c.incrementFailedExchanges()
		return nil, fmt.Errorf("reply generation failed: %w", err)
	}
	exchange.Reply = reply
	exchange.ReplyTime = time.Since(replyStart)

	c.incrementSuccessExchanges()
	c.updateAvgResponseTime(time.Since(startTime))

	return exchange, nil
}

// transcribe sends the MP3 blob to the transcription model
func (c *Client) transcribe(ctx context.Context, mp3Data []byte, utteranceID string) (string, error) {
	request := openai.AudioRequest{
		Model:    c.config.TranscribeModel,
		FilePath: fmt.Sprintf("%s.mp3", utteranceID),
		Reader:   bytes.NewReader(mp3Data),
	}

	if c.config.Language != "" {
		request.Language = c.config.Language
	}

	response, err := c.api.CreateTranscription(ctx, request)
	if err != nil {
		return "", err
	}

	return response.Text, nil
}

// complete generates the conversational reply for a transcript
func (c *Client) complete(ctx context.Context, transcript string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: transcript},
	}

	if c.config.Instruction != "" {
		messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.config.Instruction},
		}, messages...)
	}

	response, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.ChatModel,
		Messages:    messages,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}

// withRetry runs one model call with exponential backoff on retryable errors
func (c *Client) withRetry(ctx context.Context, call func() (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()
			if c.config.OnRetry != nil {
				c.config.OnRetry()
			}

			// Exponential backoff capped at 30s
			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result, err := call()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// isRetryableError determines whether a model call is worth retrying.
// Server errors and rate limiting are retryable; client errors are not.
func isRetryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}

	// Transport-level failures (connection reset, refused) surface as plain
	// errors and are retryable
	return true
}

// Statistics methods
func (c *Client) incrementTotalExchanges() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalExchanges++
}

func (c *Client) incrementSuccessExchanges() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successExchanges++
}

func (c *Client) incrementFailedExchanges() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedExchanges++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalExchanges > 0 {
		successRate = float64(c.successExchanges) / float64(c.totalExchanges) * 100
	}

	return ClientStats{
		TotalExchanges:   c.totalExchanges,
		SuccessExchanges: c.successExchanges,
		FailedExchanges:  c.failedExchanges,
		SuccessRate:      successRate,
		TotalRetries:     c.totalRetries,
		AvgResponseTime:  c.avgResponseTime,
		ActiveExchanges:  len(c.semaphore),
	}
}

// Close waits for in-flight exchanges to finish
func (c *Client) Close() error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}

	return nil
}

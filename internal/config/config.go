package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Capture   CaptureConfig   `yaml:"capture"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	VAD       VADConfig       `yaml:"vad"`
	Assistant AssistantConfig `yaml:"assistant"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// CaptureConfig contains utterance capture parameters
type CaptureConfig struct {
	SampleRate          int     `yaml:"sample_rate"`
	MaxUtteranceSeconds float64 `yaml:"max_utterance_seconds"`
	SessionTimeout      int     `yaml:"session_timeout"` // seconds
	MaxSessions         int     `yaml:"max_sessions"`
}

// EncoderConfig contains MP3 encoder configuration
type EncoderConfig struct {
	Channels    int `yaml:"channels"`
	BitrateKbps int `yaml:"bitrate_kbps"`
}

// VADConfig contains speech presence gate configuration
type VADConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Threshold  float64 `yaml:"threshold"`
	WindowSize int     `yaml:"window_size"` // samples
}

// AssistantConfig contains generative model API configuration
type AssistantConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	TranscribeModel string  `yaml:"transcribe_model"`
	ChatModel       string  `yaml:"chat_model"`
	Instruction     string  `yaml:"instruction"`
	Language        string  `yaml:"language"`
	Temperature     float64 `yaml:"temperature"`
	Timeout         int     `yaml:"timeout"` // seconds
	MaxRetries      int     `yaml:"max_retries"`
	MaxConcurrent   int     `yaml:"max_concurrent"`
}

// SynthesisConfig contains speech synthesis engine configuration
type SynthesisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Voice    string `yaml:"voice"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads, parses, and validates the configuration file. API keys may be
// supplied through the environment (ASSISTANT_API_KEY, SYNTHESIS_API_KEY)
// instead of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides replaces credential fields from the environment
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ASSISTANT_API_KEY"); v != "" {
		c.Assistant.APIKey = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Assistant.APIKey == "" {
		c.Assistant.APIKey = v
	}

	if v := os.Getenv("SYNTHESIS_API_KEY"); v != "" {
		c.Synthesis.APIKey = v
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("encoder config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Assistant.Validate(); err != nil {
		return fmt.Errorf("assistant config: %w", err)
	}

	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}

	if c.MaxUtteranceSeconds <= 0 {
		return fmt.Errorf("max_utterance_seconds must be positive, got %f", c.MaxUtteranceSeconds)
	}

	if c.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be at least 1 second, got %d", c.SessionTimeout)
	}

	if c.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", c.MaxSessions)
	}

	return nil
}

// Validate validates encoder configuration
func (e *EncoderConfig) Validate() error {
	if e.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", e.Channels)
	}

	if e.BitrateKbps <= 0 {
		return fmt.Errorf("bitrate_kbps must be positive, got %d", e.BitrateKbps)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if !v.Enabled {
		return nil
	}

	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.WindowSize < 64 || v.WindowSize > 8192 {
		return fmt.Errorf("window_size must be between 64 and 8192 samples, got %d", v.WindowSize)
	}

	return nil
}

// Validate validates assistant configuration
func (a *AssistantConfig) Validate() error {
	if a.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set it in the config file or ASSISTANT_API_KEY)")
	}

	if a.TranscribeModel == "" {
		return fmt.Errorf("transcribe_model cannot be empty")
	}

	if a.ChatModel == "" {
		return fmt.Errorf("chat_model cannot be empty")
	}

	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", a.Temperature)
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", a.MaxRetries)
	}

	if a.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", a.MaxConcurrent)
	}

	return nil
}

// Validate validates synthesis configuration
func (s *SynthesisConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when synthesis is enabled")
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetMaxUtteranceDuration returns the utterance cap as a time.Duration
func (c *CaptureConfig) GetMaxUtteranceDuration() time.Duration {
	return time.Duration(c.MaxUtteranceSeconds * float64(time.Second))
}

// GetSessionTimeoutDuration returns the session timeout as a time.Duration
func (c *CaptureConfig) GetSessionTimeoutDuration() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Second
}

// GetTimeoutDuration returns the assistant timeout as a time.Duration
func (a *AssistantConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetTimeoutDuration returns the synthesis timeout as a time.Duration
func (s *SynthesisConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/audio"
	"github.com/GPT-Engineer-App/audio-gemini-chat/internal/metrics"
)

// Session represents one live capture stream accumulating an utterance
type Session struct {
	ID           string
	StartTime    time.Time
	LastActivity time.Time

	Recorder *audio.Recorder

	mu sync.RWMutex
}

// SessionInfo is a point-in-time snapshot of a session for monitoring
type SessionInfo struct {
	ID           string        `json:"id"`
	StartTime    time.Time     `json:"start_time"`
	LastActivity time.Time     `json:"last_activity"`
	SampleRate   int           `json:"sample_rate"`
	Duration     time.Duration `json:"captured_duration"`
	Frames       uint64        `json:"frames"`
	Dropped      uint64        `json:"dropped_frames"`
}

// ManagerConfig contains configuration for the session manager
type ManagerConfig struct {
	MaxSessions    int
	SessionTimeout time.Duration
	MaxUtterance   time.Duration
}

// Manager tracks all active capture sessions and expires idle ones
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
	config   ManagerConfig
	metrics  *metrics.Metrics

	// Statistics
	created uint64
	expired uint64

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// ManagerStats represents session manager statistics
type ManagerStats struct {
	Active  int    `json:"active_sessions"`
	Created uint64 `json:"sessions_created"`
	Expired uint64 `json:"sessions_expired"`
}

// NewManager creates a new session manager and starts its cleanup routine
func NewManager(logger *slog.Logger, config ManagerConfig, m *metrics.Metrics) *Manager {
	if config.MaxSessions <= 0 {
		config.MaxSessions = 100
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = 30 * time.Second
	}
	if config.MaxUtterance <= 0 {
		config.MaxUtterance = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
		config:   config,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		cleanup:  make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr
}

// CreateSession creates a new capture session for the given sample rate
func (m *Manager) CreateSession(sampleRate int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.config.MaxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", m.config.MaxSessions)
	}

	recorder, err := audio.NewRecorder(sampleRate, m.config.MaxUtterance)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:           uuid.NewString(),
		StartTime:    now,
		LastActivity: now,
		Recorder:     recorder,
	}

	m.sessions[session.ID] = session
	m.created++
	m.metrics.RecordSessionCreated()
	m.metrics.SetActiveSessions(len(m.sessions))

	m.logger.Info("Created capture session",
		slog.String("session_id", session.ID),
		slog.Int("sample_rate", sampleRate),
	)

	return session, nil
}

// GetSession retrieves an existing capture session
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	return session, exists
}

// Touch updates the last activity time for a session
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastActivity = time.Now()
	s.mu.Unlock()
}

// Info returns a monitoring snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.Recorder.GetStats()

	return SessionInfo{
		ID:           s.ID,
		StartTime:    s.StartTime,
		LastActivity: s.LastActivity,
		SampleRate:   s.Recorder.SampleRate(),
		Duration:     s.Recorder.Duration(),
		Frames:       stats.Frames,
		Dropped:      stats.DroppedFrames,
	}
}

// GetActiveSessionCount returns the number of currently active sessions
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns snapshots of all active sessions (for monitoring)
func (m *Manager) GetAllSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		infos = append(infos, session.Info())
	}

	return infos
}

// RemoveSession removes a capture session
func (m *Manager) RemoveSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return false
	}

	delete(m.sessions, id)
	m.metrics.SetActiveSessions(len(m.sessions))

	m.logger.Info("Capture session removed",
		slog.String("session_id", id),
		slog.Duration("lifetime", time.Since(session.StartTime)),
		slog.Duration("captured", session.Recorder.Duration()),
	)

	return true
}

// GetStats returns current session manager statistics
func (m *Manager) GetStats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		Active:  len(m.sessions),
		Created: m.created,
		Expired: m.expired,
	}
}

// Stop gracefully stops the session manager
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	m.cancel()
	<-m.cleanup

	m.mu.Lock()
	remaining := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	m.metrics.SetActiveSessions(0)

	m.logger.Info("Session manager stopped",
		slog.Int("discarded_sessions", remaining),
	)
}

// startCleanupRoutine runs in a separate goroutine to expire idle sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", m.config.SessionTimeout),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions removes sessions that have been inactive for too long
func (m *Manager) cleanupExpiredSessions() {
	now := time.Now()
	expiredIDs := make([]string, 0)

	m.mu.RLock()
	for id, session := range m.sessions {
		session.mu.RLock()
		lastActivity := session.LastActivity
		session.mu.RUnlock()

		if now.Sub(lastActivity) > m.config.SessionTimeout {
			expiredIDs = append(expiredIDs, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expiredIDs {
		if m.RemoveSession(id) {
			m.mu.Lock()
			m.expired++
			m.mu.Unlock()
			m.metrics.RecordSessionExpired()

			m.logger.Info("Expired idle capture session",
				slog.String("session_id", id),
			)
		}
	}
}

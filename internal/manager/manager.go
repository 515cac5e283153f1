package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/audio"
	"audiojoin-manager/internal/config"
	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/notify"
	"audiojoin-manager/internal/prompt"
	"audiojoin-manager/internal/websocket"
)

var (
	ErrNotRunning      = errors.New("session manager not running")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("maximum number of sessions reached")
	ErrPromptMismatch  = errors.New("prompt does not belong to session")
)

// AudioFactory builds the audio service of a new session
type AudioFactory func(ctx context.Context, cfg models.SessionConfig, sessionID string) (audio.Service, error)

// SessionManager owns every session, its event loop and its audio service
type SessionManager struct {
	config         *config.Config
	catalog        *notify.Catalog
	prompts        *prompt.Registry
	wsHub          *websocket.Hub
	audioFactory   AudioFactory
	sessions       map[string]*sessionState
	meetings       map[string]*meetingState
	decisionCounts map[string]int
	running        bool
	startTime      time.Time
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	logBufferSize  int
}

// NewSessionManager creates a new session manager
func NewSessionManager(cfg *config.Config) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &SessionManager{
		config:         cfg,
		catalog:        notify.NewCatalog(),
		prompts:        prompt.NewRegistry(),
		wsHub:          websocket.NewHub(cfg.Server.CORS.AllowedOrigins),
		sessions:       make(map[string]*sessionState),
		meetings:       make(map[string]*meetingState),
		decisionCounts: make(map[string]int),
		running:        false,
		startTime:      time.Now(),
		ctx:            ctx,
		cancel:         cancel,
		logBufferSize:  1000,
	}
	m.audioFactory = m.defaultAudioFactory

	m.prompts.SetOpenCallback(func(p *prompt.Prompt) {
		m.broadcastUpdate(p.SessionID, models.MessageTypePromptOpened, map[string]interface{}{
			"prompt": p.Snapshot(),
		})
	})
	m.prompts.SetResolveCallback(func(p *prompt.Prompt, outcome prompt.Outcome) {
		m.broadcastUpdate(p.SessionID, models.MessageTypePromptResolved, map[string]interface{}{
			"prompt": p.Snapshot(),
		})
	})

	return m
}

// SetAudioFactory replaces how audio services are built for new sessions
func (m *SessionManager) SetAudioFactory(factory AudioFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioFactory = factory
}

// Catalog returns the notification catalog shared by all sessions
func (m *SessionManager) Catalog() *notify.Catalog {
	return m.catalog
}

func (m *SessionManager) defaultAudioFactory(ctx context.Context, cfg models.SessionConfig, sessionID string) (audio.Service, error) {
	if m.config.Audio.BridgeURL == "" {
		return audio.NewLocal(sessionID), nil
	}
	return audio.NewBridge(ctx, sessionID, audio.BridgeConfig{
		URL:       m.config.Audio.BridgeURL,
		Timeout:   m.config.Audio.BridgeTimeout,
		MeetingID: cfg.MeetingID,
		UserName:  cfg.UserName,
	})
}

// Start starts the session manager
func (m *SessionManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("session manager already running")
	}

	logrus.Info("Starting session manager")
	m.running = true
	m.startTime = time.Now()

	m.wsHub.Start()

	logrus.Info("Session manager started successfully")
	return nil
}

// Stop stops the session manager and closes all sessions
func (m *SessionManager) Stop() error {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		return nil
	}

	logrus.Info("Stopping session manager")
	m.running = false
	m.cancel()

	sessions := make([]*sessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*sessionState)
	m.meetings = make(map[string]*meetingState)

	m.wsHub.Stop()

	m.mu.Unlock() // Release lock before waiting

	for _, s := range sessions {
		m.closeSession(s)
	}

	m.wg.Wait()

	logrus.Info("Session manager stopped successfully")
	return nil
}

// IsRunning reports whether the manager accepts work
func (m *SessionManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// lookup returns a live session
func (m *SessionManager) lookup(sessionID string) (*sessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.running {
		return nil, ErrNotRunning
	}
	s, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

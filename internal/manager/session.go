package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/audio"
	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/notify"
	"audiojoin-manager/internal/policy"
	"audiojoin-manager/internal/prompt"
)

// sessionState is everything the manager tracks for one session. Policy work
// runs on loop; mu guards the fields for readers outside the loop.
type sessionState struct {
	id        string
	meetingID string
	userName  string
	locale    string
	breakout  bool
	createdAt time.Time

	latch policy.Latch
	audio audio.Service
	loop  *eventLoop
	ctx   context.Context
	stop  context.CancelFunc

	mu               sync.RWMutex
	userSettings     map[string]interface{}
	locks            models.UserLocks
	selections       models.Selections
	hasBreakoutRooms bool
	audioPrompt      *prompt.Prompt
	promptFollowers  []policy.Plan
	status           models.SessionStatus
	mountedAt        *time.Time
	decisions        []models.DecisionRecord
	notifications    []notify.Notification
	logs             []models.LogEntry
}

// CreateSession registers a new session and starts its event loop
func (m *SessionManager) CreateSession(cfg models.SessionConfig) (*models.Session, error) {
	m.mu.RLock()
	running := m.running
	full := len(m.sessions) >= m.config.Audio.MaxSessions
	factory := m.audioFactory
	m.mu.RUnlock()

	if !running {
		return nil, ErrNotRunning
	}
	if full {
		return nil, fmt.Errorf("%w (%d)", ErrSessionLimit, m.config.Audio.MaxSessions)
	}
	if cfg.MeetingID == "" {
		return nil, fmt.Errorf("meeting_id is required")
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}

	sessionID := fmt.Sprintf("session_%s", uuid.New().String()[:8])
	ctx, stop := context.WithCancel(m.ctx)

	service, err := factory(ctx, cfg, sessionID)
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create audio service: %w", err)
	}

	userSettings := make(map[string]interface{}, len(cfg.UserSettings))
	for k, v := range cfg.UserSettings {
		userSettings[k] = v
	}

	s := &sessionState{
		id:           sessionID,
		meetingID:    cfg.MeetingID,
		userName:     cfg.UserName,
		locale:       cfg.Locale,
		breakout:     cfg.MeetingIsBreakout,
		createdAt:    time.Now(),
		audio:        service,
		loop:         newEventLoop(ctx),
		ctx:          ctx,
		stop:         stop,
		userSettings: userSettings,
		locks:        cfg.Locks,
		selections:   cfg.Selections,
		status:       models.SessionStatusCreated,
		logs:         make([]models.LogEntry, 0, 64),
	}

	service.SetNotifyCallback(func(n notify.Notification) {
		m.notify(s, n)
	})
	service.SetStateCallback(func(state models.AudioState) {
		m.broadcastUpdate(s.id, models.MessageTypeAudioState, map[string]interface{}{"audio": state})
	})

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		stop()
		service.Close()
		return nil, ErrNotRunning
	}
	m.sessions[sessionID] = s
	meeting := m.meetingUnsafe(cfg.MeetingID)
	meeting.sessionIDs[sessionID] = true
	s.hasBreakoutRooms = len(meeting.rooms) > 0
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		s.loop.run()
	}()

	m.addLogEntry(s, "info", fmt.Sprintf("Session created for meeting %s", cfg.MeetingID))
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"meeting_id": cfg.MeetingID,
	}).Info("Created session")

	snapshot := m.snapshot(s)
	m.broadcastUpdate(sessionID, models.MessageTypeSession, map[string]interface{}{
		"event":   "created",
		"session": snapshot,
	})
	return snapshot, nil
}

// GetSession returns a snapshot of a session
func (m *SessionManager) GetSession(sessionID string) (*models.Session, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return m.snapshot(s), nil
}

// ListSessions lists all sessions
func (m *SessionManager) ListSessions() []*models.Session {
	m.mu.RLock()
	sessions := make([]*sessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	snapshots := make([]*models.Session, 0, len(sessions))
	for _, s := range sessions {
		snapshots = append(snapshots, m.snapshot(s))
	}
	return snapshots
}

// DeleteSession closes a session and forgets it
func (m *SessionManager) DeleteSession(sessionID string) error {
	m.mu.Lock()
	s, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	if meeting := m.meetings[s.meetingID]; meeting != nil {
		delete(meeting.sessionIDs, sessionID)
		m.pruneMeetingUnsafe(meeting)
	}
	m.mu.Unlock()

	m.closeSession(s)

	logrus.WithField("session_id", sessionID).Info("Deleted session")
	m.broadcastUpdate(sessionID, models.MessageTypeSession, map[string]interface{}{"event": "deleted"})
	return nil
}

// closeSession stops the loop and releases the audio service
func (m *SessionManager) closeSession(s *sessionState) {
	s.stop()
	<-s.loop.done

	if err := s.audio.Close(); err != nil {
		logrus.WithField("session_id", s.id).Warnf("Error closing audio service: %v", err)
	}
	m.prompts.Forget(s.id)

	s.mu.Lock()
	s.status = models.SessionStatusClosed
	s.mu.Unlock()
}

// snapshot builds the API view of a session
func (m *SessionManager) snapshot(s *sessionState) *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userSettings := make(map[string]interface{}, len(s.userSettings))
	for k, v := range s.userSettings {
		userSettings[k] = v
	}

	pending := m.prompts.Pending(s.id)
	openPrompts := make([]models.Prompt, 0, len(pending))
	for _, p := range pending {
		openPrompts = append(openPrompts, p.Snapshot())
	}

	session := &models.Session{
		ID:                s.id,
		MeetingID:         s.meetingID,
		UserName:          s.userName,
		Locale:            s.locale,
		MeetingIsBreakout: s.breakout,
		UserSettings:      userSettings,
		Locks:             s.locks,
		Selections:        s.selections,
		HasBreakoutRooms:  s.hasBreakoutRooms,
		AutoJoined:        s.latch.IsSet(),
		AudioModalOpen:    s.audioPrompt != nil,
		Audio:             s.audio.State(),
		Status:            s.status,
		CreatedAt:         s.createdAt,
		OpenPrompts:       openPrompts,
	}
	if s.mountedAt != nil {
		mountedAt := *s.mountedAt
		session.MountedAt = &mountedAt
	}
	return session
}

// UpdateLocks replaces the viewer locks of a session and enforces them
func (m *SessionManager) UpdateLocks(sessionID string, locks models.UserLocks) (*models.Session, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	err = s.loop.call(func() {
		s.mu.Lock()
		s.locks = locks
		s.mu.Unlock()

		m.addLogEntry(s, "info", fmt.Sprintf("Locks updated (mic=%t, webcam=%t)", locks.Microphone, locks.Webcam))
		m.enforceLocks(s)
	})
	if err != nil {
		return nil, err
	}
	return m.snapshot(s), nil
}

// UpdateSettings merges user setting overrides into a session
func (m *SessionManager) UpdateSettings(sessionID string, overrides map[string]interface{}) (*models.Session, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	err = s.loop.call(func() {
		s.mu.Lock()
		for k, v := range overrides {
			s.userSettings[k] = v
		}
		s.mu.Unlock()
		m.addLogEntry(s, "debug", fmt.Sprintf("Updated %d user settings", len(overrides)))
	})
	if err != nil {
		return nil, err
	}
	return m.snapshot(s), nil
}

// UpdateSelections records the audio modes the user picked earlier
func (m *SessionManager) UpdateSelections(sessionID string, selections models.Selections) (*models.Session, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	err = s.loop.call(func() {
		s.mu.Lock()
		s.selections = selections
		s.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	return m.snapshot(s), nil
}

// GetAudioState returns the audio connection state of a session
func (m *SessionManager) GetAudioState(sessionID string) (models.AudioState, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return models.AudioState{}, err
	}
	return s.audio.State(), nil
}

// LeaveAudio disconnects the audio of a session
func (m *SessionManager) LeaveAudio(sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	var leaveErr error
	if err := s.loop.call(func() {
		leaveErr = s.audio.Leave(s.ctx)
	}); err != nil {
		return err
	}
	return leaveErr
}

// notify records a notification for a session and pushes it to clients
func (m *SessionManager) notify(s *sessionState, n notify.Notification) {
	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	if len(s.notifications) > 100 {
		s.notifications = s.notifications[len(s.notifications)-100:]
	}
	s.mu.Unlock()

	m.broadcastUpdate(s.id, models.MessageTypeNotification, models.NotificationMessage(s.id, n).Data)
}

// GetNotifications returns the notifications raised for a session
func (m *SessionManager) GetNotifications(sessionID string) ([]notify.Notification, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notify.Notification, len(s.notifications))
	copy(result, s.notifications)
	return result, nil
}

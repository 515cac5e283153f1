package manager

import (
	"time"

	"audiojoin-manager/internal/models"
)

// GetSessionLogs gets logs for a session with pagination support
func (m *SessionManager) GetSessionLogs(sessionID string, lines int) ([]models.LogEntry, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Default to 200 logs if not specified
	if lines <= 0 {
		lines = 200
	}

	if lines > len(s.logs) {
		lines = len(s.logs)
	}

	// Return the last 'lines' entries (most recent)
	start := len(s.logs) - lines
	result := make([]models.LogEntry, lines)
	copy(result, s.logs[start:])

	return result, nil
}

// addLogEntry adds a log entry for a session
func (m *SessionManager) addLogEntry(s *sessionState, level, message string) {
	entry := models.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append(s.logs, entry)

	// Keep only the last logBufferSize entries
	if len(s.logs) > m.logBufferSize {
		s.logs = s.logs[len(s.logs)-m.logBufferSize:]
	}
}

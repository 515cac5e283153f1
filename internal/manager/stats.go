package manager

import (
	"time"

	"audiojoin-manager/internal/models"
)

// GetUsageStats gets usage statistics
func (m *SessionManager) GetUsageStats() *models.UsageStats {
	m.mu.RLock()
	sessions := make([]*sessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	decisions := make(map[string]int, len(m.decisionCounts))
	for rule, count := range m.decisionCounts {
		decisions[rule] = count
	}
	totalMeetings := len(m.meetings)
	uptime := time.Since(m.startTime).Seconds()
	m.mu.RUnlock()

	mounted := 0
	for _, s := range sessions {
		s.mu.RLock()
		if s.status == models.SessionStatusMounted {
			mounted++
		}
		s.mu.RUnlock()
	}

	return &models.UsageStats{
		TotalSessions:   len(sessions),
		MountedSessions: mounted,
		TotalMeetings:   totalMeetings,
		OpenPrompts:     m.prompts.PendingCount(),
		UptimeSeconds:   uptime,
		Decisions:       decisions,
	}
}

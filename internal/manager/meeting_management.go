package manager

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/policy"
)

var ErrBreakoutRoomNotFound = errors.New("breakout room not found")

// meetingState tracks the breakout rooms of a meeting and the sessions in it
type meetingState struct {
	id         string
	rooms      map[string]models.BreakoutRoom
	sessionIDs map[string]bool
}

// meetingUnsafe returns the meeting, creating it if needed (caller must hold m.mu)
func (m *SessionManager) meetingUnsafe(meetingID string) *meetingState {
	meeting, exists := m.meetings[meetingID]
	if !exists {
		meeting = &meetingState{
			id:         meetingID,
			rooms:      make(map[string]models.BreakoutRoom),
			sessionIDs: make(map[string]bool),
		}
		m.meetings[meetingID] = meeting
	}
	return meeting
}

// ListMeetings lists all meetings
func (m *SessionManager) ListMeetings() []*models.MeetingInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meetings := make([]*models.MeetingInfo, 0, len(m.meetings))
	for _, meeting := range m.meetings {
		info := &models.MeetingInfo{
			MeetingID:     meeting.id,
			SessionIDs:    make([]string, 0, len(meeting.sessionIDs)),
			BreakoutRooms: sortedRooms(meeting.rooms),
		}
		for id := range meeting.sessionIDs {
			info.SessionIDs = append(info.SessionIDs, id)
		}
		sort.Strings(info.SessionIDs)
		meetings = append(meetings, info)
	}

	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].MeetingID < meetings[j].MeetingID
	})
	return meetings
}

// ListBreakoutRooms lists the breakout rooms of a meeting, oldest first
func (m *SessionManager) ListBreakoutRooms(meetingID string) []models.BreakoutRoom {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meeting, exists := m.meetings[meetingID]
	if !exists {
		return []models.BreakoutRoom{}
	}
	return sortedRooms(meeting.rooms)
}

// AddBreakoutRoom adds a breakout room to a meeting
func (m *SessionManager) AddBreakoutRoom(meetingID string, room models.BreakoutRoom) (models.BreakoutRoom, error) {
	if room.ID == "" {
		room.ID = fmt.Sprintf("room_%s", uuid.New().String()[:8])
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return models.BreakoutRoom{}, ErrNotRunning
	}

	meeting := m.meetingUnsafe(meetingID)
	meeting.rooms[room.ID] = room
	m.publishBreakoutsUnsafe(meeting)

	logrus.WithFields(logrus.Fields{
		"meeting_id": meetingID,
		"room_id":    room.ID,
	}).Info("Breakout room added")
	return room, nil
}

// RemoveBreakoutRoom removes a breakout room from a meeting
func (m *SessionManager) RemoveBreakoutRoom(meetingID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrNotRunning
	}

	meeting, exists := m.meetings[meetingID]
	if !exists {
		return ErrBreakoutRoomNotFound
	}
	if _, exists := meeting.rooms[roomID]; !exists {
		return ErrBreakoutRoomNotFound
	}

	delete(meeting.rooms, roomID)
	m.publishBreakoutsUnsafe(meeting)
	m.pruneMeetingUnsafe(meeting)

	logrus.WithFields(logrus.Fields{
		"meeting_id": meetingID,
		"room_id":    roomID,
	}).Info("Breakout room removed")
	return nil
}

// SetBreakoutRooms replaces every breakout room of a meeting
func (m *SessionManager) SetBreakoutRooms(meetingID string, rooms []models.BreakoutRoom) ([]models.BreakoutRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, ErrNotRunning
	}

	meeting := m.meetingUnsafe(meetingID)
	meeting.rooms = make(map[string]models.BreakoutRoom, len(rooms))
	now := time.Now()
	for _, room := range rooms {
		if room.ID == "" {
			room.ID = fmt.Sprintf("room_%s", uuid.New().String()[:8])
		}
		if room.CreatedAt.IsZero() {
			room.CreatedAt = now
		}
		meeting.rooms[room.ID] = room
	}
	m.publishBreakoutsUnsafe(meeting)
	result := sortedRooms(meeting.rooms)
	m.pruneMeetingUnsafe(meeting)

	logrus.WithField("meeting_id", meetingID).Infof("Breakout rooms set (%d)", len(rooms))
	return result, nil
}

// publishBreakoutsUnsafe hands the new membership to every session of the
// meeting. Posting under m.mu keeps updates in order on each loop.
func (m *SessionManager) publishBreakoutsUnsafe(meeting *meetingState) {
	hasRooms := len(meeting.rooms) > 0

	for sessionID := range meeting.sessionIDs {
		s, exists := m.sessions[sessionID]
		if !exists {
			continue
		}
		s.loop.post(func() {
			s.mu.Lock()
			hadRooms := s.hasBreakoutRooms
			s.hasBreakoutRooms = hasRooms
			s.mu.Unlock()

			if policy.IsBreakoutReturn(hadRooms, hasRooms) {
				m.onBreakoutReturn(s)
			}
		})
	}
}

// pruneMeetingUnsafe forgets a meeting with no rooms and no sessions
func (m *SessionManager) pruneMeetingUnsafe(meeting *meetingState) {
	if len(meeting.rooms) == 0 && len(meeting.sessionIDs) == 0 {
		delete(m.meetings, meeting.id)
	}
}

func sortedRooms(rooms map[string]models.BreakoutRoom) []models.BreakoutRoom {
	result := make([]models.BreakoutRoom, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, room)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

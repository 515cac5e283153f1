package models

import (
	"time"

	"audiojoin-manager/internal/notify"
	"audiojoin-manager/internal/policy"
)

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusCreated SessionStatus = "created"
	SessionStatusMounted SessionStatus = "mounted"
	SessionStatusClosed  SessionStatus = "closed"
)

// AudioMode is the way a session is connected to audio
type AudioMode string

const (
	AudioModeNone       AudioMode = ""
	AudioModeMicrophone AudioMode = "microphone"
	AudioModeListenOnly AudioMode = "listen_only"
	AudioModeEcho       AudioMode = "echo"
)

// AudioStatus is the connection state reported by the audio service
type AudioStatus string

const (
	AudioStatusDisconnected AudioStatus = "disconnected"
	AudioStatusConnecting   AudioStatus = "connecting"
	AudioStatusConnected    AudioStatus = "connected"
)

// PromptKind names the modal a prompt opens
type PromptKind string

const (
	PromptKindAudio  PromptKind = "audio"
	PromptKindCamera PromptKind = "camera"
)

// PromptChoice is the user's answer to a prompt
type PromptChoice string

const (
	PromptChoiceMicrophone PromptChoice = "microphone"
	PromptChoiceListenOnly PromptChoice = "listen_only"
	PromptChoiceShared     PromptChoice = "shared"
	PromptChoiceDismissed  PromptChoice = "dismissed"
	PromptChoiceSkipped    PromptChoice = "skipped"
)

// MicrophoneConstraints are the capture constraints pushed to the audio service
type MicrophoneConstraints map[string]interface{}

// SessionConfig is the body used to create a session
type SessionConfig struct {
	MeetingID         string                 `json:"meeting_id" toml:"meeting_id" binding:"required"`
	UserName          string                 `json:"user_name" toml:"user_name"`
	Locale            string                 `json:"locale" toml:"locale"`
	MeetingIsBreakout bool                   `json:"meeting_is_breakout" toml:"meeting_is_breakout"`
	UserSettings      map[string]interface{} `json:"user_settings,omitempty" toml:"user_settings"`
	Locks             UserLocks              `json:"locks" toml:"locks"`
	Selections        Selections             `json:"selections" toml:"selections"`
}

// UserLocks are the viewer restrictions set by a moderator
type UserLocks struct {
	Microphone bool `json:"user_mic" toml:"user_mic"`
	Webcam     bool `json:"user_webcam" toml:"user_webcam"`
}

// Selections remember which audio mode the user picked in a previous prompt
type Selections struct {
	Microphone bool `json:"microphone" toml:"microphone"`
	ListenOnly bool `json:"listen_only" toml:"listen_only"`
}

// AudioState is a snapshot of a session's audio connection
type AudioState struct {
	Status      AudioStatus           `json:"status"`
	Mode        AudioMode             `json:"mode"`
	Muted       bool                  `json:"muted"`
	Constraints MicrophoneConstraints `json:"constraints,omitempty"`
}

// IsConnected reports whether audio is up
func (s AudioState) IsConnected() bool {
	return s.Status == AudioStatusConnected
}

// IsUsingAudio reports whether audio is up or on its way up
func (s AudioState) IsUsingAudio() bool {
	return s.Status == AudioStatusConnected || s.Status == AudioStatusConnecting
}

// Session represents a user's view of a meeting
type Session struct {
	ID                string                 `json:"id"`
	MeetingID         string                 `json:"meeting_id"`
	UserName          string                 `json:"user_name"`
	Locale            string                 `json:"locale"`
	MeetingIsBreakout bool                   `json:"meeting_is_breakout"`
	UserSettings      map[string]interface{} `json:"user_settings,omitempty"`
	Locks             UserLocks              `json:"locks"`
	Selections        Selections             `json:"selections"`
	HasBreakoutRooms  bool                   `json:"has_breakout_rooms"`
	AutoJoined        bool                   `json:"auto_joined"`
	AudioModalOpen    bool                   `json:"audio_modal_open"`
	Audio             AudioState             `json:"audio"`
	Status            SessionStatus          `json:"status"`
	CreatedAt         time.Time              `json:"created_at"`
	MountedAt         *time.Time             `json:"mounted_at,omitempty"`
	OpenPrompts       []Prompt               `json:"open_prompts"`
}

// Prompt is a modal waiting on the user
type Prompt struct {
	ID         string       `json:"id"`
	SessionID  string       `json:"session_id"`
	Kind       PromptKind   `json:"kind"`
	OpenedAt   time.Time    `json:"opened_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	Choice     PromptChoice `json:"choice,omitempty"`
}

// DecisionTrigger names the moment a policy was evaluated
type DecisionTrigger string

const (
	TriggerMount          DecisionTrigger = "mount"
	TriggerAutoJoin       DecisionTrigger = "auto_join"
	TriggerBreakoutReturn DecisionTrigger = "breakout_return"
	TriggerRejoin         DecisionTrigger = "rejoin"
)

// DecisionRecord is one evaluated policy and the facts it saw
type DecisionRecord struct {
	Trigger   DecisionTrigger `json:"trigger"`
	Facts     policy.Facts    `json:"facts"`
	Plan      policy.Plan     `json:"plan"`
	Timestamp time.Time       `json:"timestamp"`
}

// BreakoutRoom represents a breakout room of a meeting
type BreakoutRoom struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LogEntry represents a log entry for a session
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// UsageStats represents usage statistics
type UsageStats struct {
	TotalSessions   int            `json:"total_sessions"`
	MountedSessions int            `json:"mounted_sessions"`
	TotalMeetings   int            `json:"total_meetings"`
	OpenPrompts     int            `json:"open_prompts"`
	UptimeSeconds   float64        `json:"uptime_seconds"`
	Decisions       map[string]int `json:"decisions"`
}

// WebSocket message types
const (
	MessageTypeSession        = "session"
	MessageTypeDecision       = "decision"
	MessageTypePromptOpened   = "prompt_opened"
	MessageTypePromptResolved = "prompt_resolved"
	MessageTypeAudioState     = "audio_state"
	MessageTypeNotification   = "notification"
)

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NotificationMessage wraps a notification for the WebSocket
func NotificationMessage(sessionID string, n notify.Notification) WebSocketMessage {
	return WebSocketMessage{
		Type:      MessageTypeNotification,
		SessionID: sessionID,
		Data: map[string]interface{}{
			"kind":       n.Kind,
			"key":        n.Key,
			"message_id": n.MessageID,
			"text":       n.Text,
			"icon":       n.Icon,
		},
		Timestamp: n.Timestamp,
	}
}

// MeetingInfo represents a meeting and the sessions watching it
type MeetingInfo struct {
	MeetingID     string         `json:"meeting_id"`
	SessionIDs    []string       `json:"session_ids"`
	BreakoutRooms []BreakoutRoom `json:"breakout_rooms"`
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"audiojoin-manager/internal/audio"
	"audiojoin-manager/internal/manager"
	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/policy"
	"audiojoin-manager/internal/prompt"
)

// Handler holds the dependencies for HTTP handlers
type Handler struct {
	sessionManager *manager.SessionManager
}

// NewHandler creates a new handler instance
func NewHandler(sessionManager *manager.SessionManager) *Handler {
	return &Handler{
		sessionManager: sessionManager,
	}
}

// DecideRequest is the body of POST /decide
type DecideRequest struct {
	policy.Facts
	HadBreakoutRooms bool `json:"had_breakout_rooms"`
}

// UpdateSettingsRequest is the body of PUT /sessions/{session_id}/settings
type UpdateSettingsRequest struct {
	UserSettings map[string]interface{} `json:"user_settings" binding:"required"`
}

// SetBreakoutRoomsRequest is the body of PUT /meetings/{meeting_id}/breakouts
type SetBreakoutRoomsRequest struct {
	Rooms []models.BreakoutRoom `json:"rooms"`
}

// errorStatus maps manager errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, manager.ErrSessionNotFound),
		errors.Is(err, manager.ErrPromptMismatch),
		errors.Is(err, manager.ErrBreakoutRoomNotFound),
		errors.Is(err, prompt.ErrPromptNotFound):
		return http.StatusNotFound
	case errors.Is(err, prompt.ErrAlreadyResolved),
		errors.Is(err, audio.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, prompt.ErrInvalidChoice):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrSessionLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, manager.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

// HealthCheck handles the root endpoint
func (h *Handler) HealthCheck(c *gin.Context) {
	if !h.sessionManager.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"message": "Session manager is not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Audio Join Manager API is running",
	})
}

// ListSessions handles GET /sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions := h.sessionManager.ListSessions()
	c.JSON(http.StatusOK, sessions)
}

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var config models.SessionConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.CreateSession(config)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession handles GET /sessions/{session_id}
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessionManager.GetSession(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// DeleteSession handles DELETE /sessions/{session_id}
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessionManager.DeleteSession(c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

// MountSession handles POST /sessions/{session_id}/mount
func (h *Handler) MountSession(c *gin.Context) {
	result, err := h.sessionManager.MountSession(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdateLocks handles PUT /sessions/{session_id}/locks
func (h *Handler) UpdateLocks(c *gin.Context) {
	var locks models.UserLocks
	if err := c.ShouldBindJSON(&locks); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.UpdateLocks(c.Param("session_id"), locks)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// UpdateSettings handles PUT /sessions/{session_id}/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.UpdateSettings(c.Param("session_id"), req.UserSettings)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// UpdateSelections handles PUT /sessions/{session_id}/selections
func (h *Handler) UpdateSelections(c *gin.Context) {
	var selections models.Selections
	if err := c.ShouldBindJSON(&selections); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.UpdateSelections(c.Param("session_id"), selections)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetDecisions handles GET /sessions/{session_id}/decisions
func (h *Handler) GetDecisions(c *gin.Context) {
	decisions, err := h.sessionManager.GetDecisions(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

// GetNotifications handles GET /sessions/{session_id}/notifications
func (h *Handler) GetNotifications(c *gin.Context) {
	notifications, err := h.sessionManager.GetNotifications(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// GetSessionLogs handles GET /sessions/{session_id}/logs
func (h *Handler) GetSessionLogs(c *gin.Context) {
	lines := 100 // default
	if linesStr := c.Query("lines"); linesStr != "" {
		if parsedLines, err := strconv.Atoi(linesStr); err == nil && parsedLines > 0 {
			lines = parsedLines
		}
	}

	logs, err := h.sessionManager.GetSessionLogs(c.Param("session_id"), lines)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// GetAudioState handles GET /sessions/{session_id}/audio
func (h *Handler) GetAudioState(c *gin.Context) {
	state, err := h.sessionManager.GetAudioState(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// LeaveAudio handles POST /sessions/{session_id}/audio/leave
func (h *Handler) LeaveAudio(c *gin.Context) {
	if err := h.sessionManager.LeaveAudio(c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left audio"})
}

// ResolvePrompt handles POST /sessions/{session_id}/prompts/{prompt_id}/resolve
func (h *Handler) ResolvePrompt(c *gin.Context) {
	var outcome prompt.Outcome
	if err := c.ShouldBindJSON(&outcome); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if outcome.Choice == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "choice is required"})
		return
	}

	resolved, err := h.sessionManager.ResolvePrompt(c.Param("session_id"), c.Param("prompt_id"), outcome)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolved)
}

// ListMeetings handles GET /meetings
func (h *Handler) ListMeetings(c *gin.Context) {
	meetings := h.sessionManager.ListMeetings()
	c.JSON(http.StatusOK, meetings)
}

// ListBreakoutRooms handles GET /meetings/{meeting_id}/breakouts
func (h *Handler) ListBreakoutRooms(c *gin.Context) {
	rooms := h.sessionManager.ListBreakoutRooms(c.Param("meeting_id"))
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// AddBreakoutRoom handles POST /meetings/{meeting_id}/breakouts
func (h *Handler) AddBreakoutRoom(c *gin.Context) {
	var room models.BreakoutRoom
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&room); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	added, err := h.sessionManager.AddBreakoutRoom(c.Param("meeting_id"), room)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, added)
}

// RemoveBreakoutRoom handles DELETE /meetings/{meeting_id}/breakouts/{room_id}
func (h *Handler) RemoveBreakoutRoom(c *gin.Context) {
	if err := h.sessionManager.RemoveBreakoutRoom(c.Param("meeting_id"), c.Param("room_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Breakout room removed"})
}

// SetBreakoutRooms handles PUT /meetings/{meeting_id}/breakouts
func (h *Handler) SetBreakoutRooms(c *gin.Context) {
	var req SetBreakoutRoomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rooms, err := h.sessionManager.SetBreakoutRooms(c.Param("meeting_id"), req.Rooms)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// Decide handles POST /decide
func (h *Handler) Decide(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.sessionManager.Evaluate(req.Facts, req.HadBreakoutRooms))
}

// WebSocketSession handles WebSocket connections for one session
func (h *Handler) WebSocketSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	// Check if session exists
	if _, err := h.sessionManager.GetSession(sessionID); err != nil {
		respondError(c, err)
		return
	}

	wsHub := h.sessionManager.GetWebSocketHub()
	wsHub.ServeWs(c, sessionID)
}

// WebSocketWatcher handles WebSocket connections that follow every session
func (h *Handler) WebSocketWatcher(c *gin.Context) {
	wsHub := h.sessionManager.GetWebSocketHub()
	wsHub.ServeWatcherWs(c)
}

// GetUsageStats handles GET /usage (additional endpoint for usage statistics)
func (h *Handler) GetUsageStats(c *gin.Context) {
	stats := h.sessionManager.GetUsageStats()
	c.JSON(http.StatusOK, stats)
}

// GetWebSocketStats handles GET /ws/stats (additional endpoint for WebSocket stats)
func (h *Handler) GetWebSocketStats(c *gin.Context) {
	wsHub := h.sessionManager.GetWebSocketHub()
	c.JSON(http.StatusOK, gin.H{
		"total_clients":      wsHub.GetClientCount(),
		"sessions_monitored": len(h.sessionManager.ListSessions()),
	})
}

package manager

import (
	"time"

	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/websocket"
)

// GetWebSocketHub returns the WebSocket hub for real-time updates
func (m *SessionManager) GetWebSocketHub() *websocket.Hub {
	return m.wsHub
}

// broadcastUpdate broadcasts an update to WebSocket clients
func (m *SessionManager) broadcastUpdate(sessionID, updateType string, data map[string]interface{}) {
	message := models.WebSocketMessage{
		Type:      updateType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now(),
	}

	m.wsHub.BroadcastToSession(message)
}

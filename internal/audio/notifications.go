package audio

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/notify"
)

// methodAudioState is the notification the bridge sends when the media
// connection changes on its own
const methodAudioState = "notifications/audio_state"

// Bridge-side connection states
const (
	bridgeReconnecting = "reconnecting"
	bridgeConnected    = "connected"
	bridgeDisconnected = "disconnected"
)

type bridgeStateParams struct {
	Status string `json:"status"`
	Code   int    `json:"code,omitempty"`
}

// handleNotification handles incoming MCP notifications from the bridge
func (c *Connection) handleNotification(notification mcp.JSONRPCNotification) {
	c.log("debug", fmt.Sprintf("Received notification: method=%s", notification.Notification.Method))

	if notification.Notification.Method != methodAudioState {
		return
	}

	var params bridgeStateParams

	// Marshal and unmarshal the params into bridgeStateParams
	paramsBytes, err := json.Marshal(notification.Notification.Params)
	if err != nil {
		c.log("warn", fmt.Sprintf("Failed to marshal notification params: %v", err))
		return
	}
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		c.log("warn", fmt.Sprintf("Failed to unmarshal audio state params: %v", err))
		return
	}

	c.applyBridgeState(params)
}

// applyBridgeState folds a state reported by the bridge into the local state
func (c *Connection) applyBridgeState(params bridgeStateParams) {
	c.mu.Lock()
	var key, icon string
	switch params.Status {
	case bridgeReconnecting:
		if !c.state.IsConnected() {
			c.mu.Unlock()
			return
		}
		c.state.Status = models.AudioStatusConnecting
		key, icon = notify.ReconnectingAudio, notify.IconAudioOff
	case bridgeConnected:
		// An in-flight join reports the connection itself
		if c.joining || c.state.Status != models.AudioStatusConnecting {
			c.mu.Unlock()
			return
		}
		c.state.Status = models.AudioStatusConnected
		key, icon = notify.JoinedAudio, notify.IconAudioOn
	case bridgeDisconnected:
		if !c.state.IsUsingAudio() {
			c.mu.Unlock()
			return
		}
		c.state.Status = models.AudioStatusDisconnected
		c.state.Mode = models.AudioModeNone
		key, icon = notify.LeftAudio, notify.IconAudioOff
		if notify.IsWebRTCCode(params.Code) {
			key, icon = notify.WebRTCKey(params.Code), notify.IconError
		}
	default:
		c.mu.Unlock()
		c.log("debug", fmt.Sprintf("Ignoring unknown bridge state %q", params.Status))
		return
	}
	c.log("info", fmt.Sprintf("Bridge reported audio %s", params.Status))
	c.mu.Unlock()

	c.emitState()
	c.emitNotification(key, icon)
}

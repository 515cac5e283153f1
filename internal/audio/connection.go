package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/notify"
)

// remote carries audio actions to whatever actually moves the media
type remote interface {
	call(ctx context.Context, tool string, args map[string]interface{}) error
	close() error
}

// Tool names understood by the audio bridge
const (
	toolJoinAudio         = "join_audio"
	toolLeaveAudio        = "leave_audio"
	toolToggleMute        = "toggle_mute"
	toolUpdateConstraints = "update_audio_constraints"
)

// Connection tracks the audio state of one session. Without a remote it is a
// purely local state machine.
type Connection struct {
	sessionID string
	remote    remote

	mu          sync.RWMutex
	state       models.AudioState
	catalog     *notify.Catalog
	locale      string
	initialized bool
	// joining is set while a join call is in flight
	joining bool

	// Callbacks for events
	onNotify func(notify.Notification)
	onState  func(models.AudioState)
}

var _ Service = (*Connection)(nil)

func newConnection(sessionID string, r remote) *Connection {
	return &Connection{
		sessionID: sessionID,
		remote:    r,
		state: models.AudioState{
			Status: models.AudioStatusDisconnected,
		},
	}
}

// NewLocal creates an audio connection that only tracks state in memory
func NewLocal(sessionID string) *Connection {
	return newConnection(sessionID, nil)
}

// Init binds the message catalog used for notifications
func (c *Connection) Init(catalog *notify.Catalog, locale string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.catalog = catalog
	c.locale = locale
	c.initialized = true
	c.log("debug", "Audio service initialized")
}

// SetNotifyCallback sets the callback for user notifications
func (c *Connection) SetNotifyCallback(callback func(notify.Notification)) {
	c.onNotify = callback
}

// SetStateCallback sets the callback for audio state changes
func (c *Connection) SetStateCallback(callback func(models.AudioState)) {
	c.onState = callback
}

// State returns a copy of the current audio state
func (c *Connection) State() models.AudioState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := c.state
	if c.state.Constraints != nil {
		state.Constraints = make(models.MicrophoneConstraints, len(c.state.Constraints))
		for k, v := range c.state.Constraints {
			state.Constraints[k] = v
		}
	}
	return state
}

// IsConnected returns whether audio is connected
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsConnected()
}

// IsUsingAudio returns whether audio is connected or connecting
func (c *Connection) IsUsingAudio() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsUsingAudio()
}

// IsListenOnly returns whether audio is connected in listen-only mode
func (c *Connection) IsListenOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsConnected() && c.state.Mode == models.AudioModeListenOnly
}

// IsMuted returns whether the microphone is muted
func (c *Connection) IsMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Muted
}

// JoinMicrophone connects with the microphone. When force is set the
// microphone starts unmuted even if it was muted before.
func (c *Connection) JoinMicrophone(ctx context.Context, force bool) error {
	return c.join(ctx, models.AudioModeMicrophone, force)
}

// JoinListenOnly connects without a microphone
func (c *Connection) JoinListenOnly(ctx context.Context) error {
	return c.join(ctx, models.AudioModeListenOnly, false)
}

func (c *Connection) join(ctx context.Context, mode models.AudioMode, force bool) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	if c.state.IsUsingAudio() {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	c.state.Status = models.AudioStatusConnecting
	c.state.Mode = mode
	c.joining = true
	if mode == models.AudioModeListenOnly || force {
		c.state.Muted = false
	}
	c.log("info", fmt.Sprintf("Joining audio (mode=%s, force=%t)", mode, force))
	c.mu.Unlock()
	c.emitState()

	if c.remote != nil {
		err := c.remote.call(ctx, toolJoinAudio, map[string]interface{}{
			"mode":      string(mode),
			"force_mic": force,
		})
		if err != nil {
			c.mu.Lock()
			c.joining = false
			c.state.Status = models.AudioStatusDisconnected
			c.state.Mode = models.AudioModeNone
			c.log("error", fmt.Sprintf("Failed to join audio: %v", err))
			c.mu.Unlock()
			c.emitState()
			c.emitNotification(ErrorKey(err), notify.IconError)
			return fmt.Errorf("failed to join audio: %w", err)
		}
	}

	c.mu.Lock()
	c.joining = false
	c.state.Status = models.AudioStatusConnected
	c.log("info", "Joined audio")
	c.mu.Unlock()
	c.emitState()
	c.emitNotification(notify.JoinedAudio, notify.IconAudioOn)
	return nil
}

// Leave disconnects audio
func (c *Connection) Leave(ctx context.Context) error {
	c.mu.RLock()
	using := c.state.IsUsingAudio()
	c.mu.RUnlock()

	if !using {
		return ErrNotConnected
	}

	if c.remote != nil {
		if err := c.remote.call(ctx, toolLeaveAudio, map[string]interface{}{}); err != nil {
			// Continue anyway since we're trying to leave
			c.log("warn", fmt.Sprintf("Leave audio call returned error: %v", err))
		}
	}

	c.mu.Lock()
	c.state.Status = models.AudioStatusDisconnected
	c.state.Mode = models.AudioModeNone
	c.log("info", "Left audio")
	c.mu.Unlock()
	c.emitState()
	c.emitNotification(notify.LeftAudio, notify.IconAudioOff)
	return nil
}

// ToggleMuteMicrophone flips the microphone mute state
func (c *Connection) ToggleMuteMicrophone(ctx context.Context) error {
	c.mu.RLock()
	connected := c.state.IsConnected()
	listenOnly := c.state.Mode == models.AudioModeListenOnly
	muted := c.state.Muted
	c.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}
	if listenOnly {
		return ErrListenOnly
	}

	if c.remote != nil {
		if err := c.remote.call(ctx, toolToggleMute, map[string]interface{}{"muted": !muted}); err != nil {
			c.log("error", fmt.Sprintf("Failed to toggle mute: %v", err))
			return fmt.Errorf("failed to toggle mute: %w", err)
		}
	}

	c.mu.Lock()
	c.state.Muted = !muted
	c.log("info", fmt.Sprintf("Microphone muted: %t", c.state.Muted))
	c.mu.Unlock()
	c.emitState()
	return nil
}

// UpdateAudioConstraints replaces the microphone capture constraints
func (c *Connection) UpdateAudioConstraints(ctx context.Context, constraints models.MicrophoneConstraints) error {
	if c.remote != nil {
		if err := c.remote.call(ctx, toolUpdateConstraints, map[string]interface{}{"constraints": constraints}); err != nil {
			c.log("warn", fmt.Sprintf("Failed to update audio constraints: %v", err))
			return fmt.Errorf("failed to update audio constraints: %w", err)
		}
	}

	c.mu.Lock()
	c.state.Constraints = make(models.MicrophoneConstraints, len(constraints))
	for k, v := range constraints {
		c.state.Constraints[k] = v
	}
	c.mu.Unlock()
	c.emitState()
	return nil
}

// Close releases the remote, if any
func (c *Connection) Close() error {
	if c.remote == nil {
		return nil
	}
	return c.remote.close()
}

func (c *Connection) emitState() {
	if c.onState != nil {
		c.onState(c.State())
	}
}

func (c *Connection) emitNotification(key, icon string) {
	c.mu.RLock()
	catalog := c.catalog
	locale := c.locale
	c.mu.RUnlock()

	if catalog == nil || c.onNotify == nil {
		return
	}
	c.onNotify(catalog.New(locale, key, icon))
}

// log is a helper method for logging with session context
func (c *Connection) log(level, message string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.WithField("session_id", c.sessionID).Log(lvl, message)
}

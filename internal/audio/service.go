// Package audio holds the audio-connection collaborator of a session: the
// connection state the join policy reads and the join/leave/mute actions it
// triggers.
package audio

import (
	"context"
	"errors"
	"fmt"

	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/notify"
)

// Service is the audio connection of one session
type Service interface {
	Init(catalog *notify.Catalog, locale string)
	State() models.AudioState
	IsConnected() bool
	IsUsingAudio() bool
	IsListenOnly() bool
	IsMuted() bool
	ToggleMuteMicrophone(ctx context.Context) error
	UpdateAudioConstraints(ctx context.Context, constraints models.MicrophoneConstraints) error
	JoinMicrophone(ctx context.Context, force bool) error
	JoinListenOnly(ctx context.Context) error
	Leave(ctx context.Context) error
	SetNotifyCallback(callback func(notify.Notification))
	SetStateCallback(callback func(models.AudioState))
	Close() error
}

var (
	ErrNotConnected     = errors.New("audio not connected")
	ErrAlreadyConnected = errors.New("audio already connected")
	ErrListenOnly       = errors.New("audio is listen only")
	ErrNotInitialized   = errors.New("audio service not initialized")
)

// Error is an audio failure tagged with its notification catalog key
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKey returns the catalog key of err, or GENERIC_ERROR
func ErrorKey(err error) string {
	var audioErr *Error
	if errors.As(err, &audioErr) {
		return audioErr.Key
	}
	return notify.GenericError
}

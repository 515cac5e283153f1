package settings

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Per-user setting keys as they arrive from the join URL
const (
	KeyAutoJoinAudio   = "bbb_auto_join_audio"
	KeyEnableVideo     = "bbb_enable_video"
	KeyAutoShareWebcam = "bbb_auto_share_webcam"
	KeyListenOnlyMode  = "bbb_listen_only_mode"
	KeySkipCheckAudio  = "bbb_skip_check_audio"
)

// Defaults are the deployment-wide values used when a user has no override
type Defaults struct {
	AutoJoin        bool
	EnableVideo     bool
	AutoShareWebcam bool
	ListenOnlyMode  bool
	SkipCheckAudio  bool
}

// Resolved holds the effective settings for one user
type Resolved struct {
	AutoJoin        bool `json:"auto_join"`
	EnableVideo     bool `json:"enable_video"`
	AutoShareWebcam bool `json:"auto_share_webcam"`
	ListenOnlyMode  bool `json:"listen_only_mode"`
	SkipCheckAudio  bool `json:"skip_check_audio"`
}

// CameraAutoShare reports whether the camera preview should follow audio setup
func (r Resolved) CameraAutoShare() bool {
	return r.EnableVideo && r.AutoShareWebcam
}

// Bool looks key up in userSettings, falling back when it is missing or
// cannot be read as a boolean
func Bool(userSettings map[string]interface{}, key string, fallback bool) bool {
	raw, ok := userSettings[key]
	if !ok || raw == nil {
		return fallback
	}

	value, err := cast.ToBoolE(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"key":   key,
			"value": raw,
		}).Warnf("Ignoring unreadable user setting: %v", err)
		return fallback
	}
	return value
}

// Resolve applies the user's overrides on top of the defaults
func Resolve(userSettings map[string]interface{}, defaults Defaults) Resolved {
	return Resolved{
		AutoJoin:        Bool(userSettings, KeyAutoJoinAudio, defaults.AutoJoin),
		EnableVideo:     Bool(userSettings, KeyEnableVideo, defaults.EnableVideo),
		AutoShareWebcam: Bool(userSettings, KeyAutoShareWebcam, defaults.AutoShareWebcam),
		ListenOnlyMode:  Bool(userSettings, KeyListenOnlyMode, defaults.ListenOnlyMode),
		SkipCheckAudio:  Bool(userSettings, KeySkipCheckAudio, defaults.SkipCheckAudio),
	}
}

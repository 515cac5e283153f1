package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBool_Fallback(t *testing.T) {
	assert.True(t, Bool(nil, KeyAutoJoinAudio, true))
	assert.False(t, Bool(map[string]interface{}{}, KeyAutoJoinAudio, false))
	assert.True(t, Bool(map[string]interface{}{KeyAutoJoinAudio: nil}, KeyAutoJoinAudio, true))
}

func TestBool_Coercion(t *testing.T) {
	tests := []struct {
		raw  interface{}
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{float64(1), true},
		{float64(0), false},
	}

	for _, tt := range tests {
		got := Bool(map[string]interface{}{KeyEnableVideo: tt.raw}, KeyEnableVideo, !tt.want)
		assert.Equal(t, tt.want, got, "raw %#v", tt.raw)
	}
}

func TestBool_UnreadableFallsBack(t *testing.T) {
	userSettings := map[string]interface{}{KeyAutoShareWebcam: "maybe"}
	assert.True(t, Bool(userSettings, KeyAutoShareWebcam, true))
	assert.False(t, Bool(userSettings, KeyAutoShareWebcam, false))
}

func TestResolve(t *testing.T) {
	defaults := Defaults{AutoJoin: true, EnableVideo: true, AutoShareWebcam: false}

	resolved := Resolve(nil, defaults)
	assert.True(t, resolved.AutoJoin)
	assert.False(t, resolved.CameraAutoShare())

	resolved = Resolve(map[string]interface{}{
		KeyAutoJoinAudio:   "false",
		KeyAutoShareWebcam: true,
	}, defaults)
	assert.False(t, resolved.AutoJoin)
	assert.True(t, resolved.CameraAutoShare())

	resolved = Resolve(map[string]interface{}{
		KeyEnableVideo:     false,
		KeyAutoShareWebcam: true,
	}, defaults)
	assert.False(t, resolved.CameraAutoShare())
}

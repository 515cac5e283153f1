package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Audio.AutoJoin)
	assert.True(t, cfg.Audio.EnableVideo)
	assert.False(t, cfg.Audio.AutoShareWebcam)
	assert.False(t, cfg.Audio.PreferSilentBreakoutJoin)
	assert.Equal(t, "audiojoin.breakouts", cfg.Breakouts.SubjectPrefix)
	assert.Empty(t, cfg.Breakouts.NATSURL)

	defaults := cfg.Audio.Defaults()
	assert.True(t, defaults.AutoJoin)
	assert.True(t, defaults.EnableVideo)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audiojoin.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9100

[audio]
auto_join = false
auto_share_webcam = true
bridge_timeout = "3s"

[audio.microphone_constraints]
echoCancellation = false
`), 0o600))

	t.Setenv("AUDIOJOIN_CONFIG", path)
	t.Setenv("SERVER_PORT", "9200")
	t.Setenv("AUDIO_ENABLE_VIDEO", "false")
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.False(t, cfg.Audio.AutoJoin)
	assert.True(t, cfg.Audio.AutoShareWebcam)
	assert.False(t, cfg.Audio.EnableVideo)
	assert.Equal(t, 3*time.Second, cfg.Audio.BridgeTimeout)
	assert.Equal(t, false, cfg.Audio.MicrophoneConstraints["echoCancellation"])
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Breakouts.NATSURL)
}

func TestLoadConfig_BadInputs(t *testing.T) {
	t.Setenv("AUDIOJOIN_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("AUDIOJOIN_CONFIG", "")
	t.Setenv("MICROPHONE_CONSTRAINTS", "{not json")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_IgnoresUnparsableBool(t *testing.T) {
	t.Setenv("AUDIO_AUTO_JOIN", "sometimes")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Audio.AutoJoin)
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, SetupLogging(&LoggingConfig{Level: "debug", Format: "text"}))
	assert.Error(t, SetupLogging(&LoggingConfig{Level: "loud"}))
}

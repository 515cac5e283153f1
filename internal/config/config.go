package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/settings"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
	Audio     AudioConfig     `toml:"audio"`
	Breakouts BreakoutsConfig `toml:"breakouts"`
}

// ServerConfig represents the server configuration
type ServerConfig struct {
	Host         string        `toml:"host"`
	Port         int           `toml:"port"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	CORS         CORSConfig    `toml:"cors"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	AllowedMethods []string `toml:"allowed_methods"`
	AllowedHeaders []string `toml:"allowed_headers"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AudioConfig holds the deployment defaults of the join policy and the
// audio service
type AudioConfig struct {
	AutoJoin        bool `toml:"auto_join"`
	EnableVideo     bool `toml:"enable_video"`
	AutoShareWebcam bool `toml:"auto_share_webcam"`
	ListenOnlyMode  bool `toml:"listen_only_mode"`
	SkipCheckAudio  bool `toml:"skip_check_audio"`
	MaxSessions     int  `toml:"max_sessions"`
	// PreferSilentBreakoutJoin skips the mount prompt when a breakout session
	// is silently rejoined at mount
	PreferSilentBreakoutJoin bool                         `toml:"prefer_silent_breakout_join"`
	MicrophoneConstraints    models.MicrophoneConstraints `toml:"microphone_constraints"`
	BridgeURL                string                       `toml:"bridge_url"`
	BridgeTimeout            time.Duration                `toml:"bridge_timeout"`
}

// Defaults returns the user-setting fallbacks
func (a AudioConfig) Defaults() settings.Defaults {
	return settings.Defaults{
		AutoJoin:        a.AutoJoin,
		EnableVideo:     a.EnableVideo,
		AutoShareWebcam: a.AutoShareWebcam,
		ListenOnlyMode:  a.ListenOnlyMode,
		SkipCheckAudio:  a.SkipCheckAudio,
	}
}

// BreakoutsConfig configures the breakout membership feed
type BreakoutsConfig struct {
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8002,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:3000"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Audio: AudioConfig{
			AutoJoin:                 true,
			EnableVideo:              true,
			AutoShareWebcam:          false,
			MaxSessions:              500,
			PreferSilentBreakoutJoin: false,
			MicrophoneConstraints: models.MicrophoneConstraints{
				"echoCancellation": true,
				"noiseSuppression": true,
				"autoGainControl":  true,
			},
			BridgeTimeout: 15 * time.Second,
		},
		Breakouts: BreakoutsConfig{
			SubjectPrefix: "audiojoin.breakouts",
		},
	}
}

// LoadConfig loads configuration from an optional TOML file, .env files and
// environment variables, in that order of increasing priority
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("AUDIOJOIN_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
		logrus.Infof("Loaded configuration from %s", path)
	}

	localEnvPath := ".env"
	if _, err := os.Stat(localEnvPath); err == nil {
		if err := godotenv.Load(localEnvPath); err != nil {
			logrus.Warnf("Failed to load .env file from %s: %v", localEnvPath, err)
		} else {
			logrus.Infof("Successfully loaded environment variables from %s", localEnvPath)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides cfg with environment variables
func applyEnv(cfg *Config) error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.CORS.AllowedOrigins = strings.Split(origins, ",")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	boolEnv("AUDIO_AUTO_JOIN", &cfg.Audio.AutoJoin)
	boolEnv("AUDIO_ENABLE_VIDEO", &cfg.Audio.EnableVideo)
	boolEnv("AUDIO_AUTO_SHARE_WEBCAM", &cfg.Audio.AutoShareWebcam)
	boolEnv("AUDIO_LISTEN_ONLY_MODE", &cfg.Audio.ListenOnlyMode)
	boolEnv("AUDIO_SKIP_CHECK_AUDIO", &cfg.Audio.SkipCheckAudio)
	boolEnv("AUDIO_PREFER_SILENT_BREAKOUT_JOIN", &cfg.Audio.PreferSilentBreakoutJoin)

	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		if ms, err := strconv.Atoi(maxSessions); err == nil {
			cfg.Audio.MaxSessions = ms
		}
	}

	if constraints := os.Getenv("MICROPHONE_CONSTRAINTS"); constraints != "" {
		var parsed models.MicrophoneConstraints
		if err := json.Unmarshal([]byte(constraints), &parsed); err != nil {
			return fmt.Errorf("invalid MICROPHONE_CONSTRAINTS: %w", err)
		}
		cfg.Audio.MicrophoneConstraints = parsed
	}

	if url := os.Getenv("AUDIO_BRIDGE_URL"); url != "" {
		cfg.Audio.BridgeURL = url
	}

	if timeout := os.Getenv("AUDIO_BRIDGE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Audio.BridgeTimeout = d
		}
	}

	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.Breakouts.NATSURL = url
	}

	if prefix := os.Getenv("BREAKOUTS_SUBJECT_PREFIX"); prefix != "" {
		cfg.Breakouts.SubjectPrefix = prefix
	}

	return nil
}

func boolEnv(key string, target *bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		logrus.Warnf("Ignoring %s=%q: %v", key, raw, err)
		return
	}
	*target = value
}

// SetupLogging configures the logging system
func SetupLogging(cfg *LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return nil
}

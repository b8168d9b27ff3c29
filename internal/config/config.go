// ABOUTME: Configuration loading and parsing for coven-client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete coven-client configuration.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway"`
	Auth       AuthConfig       `yaml:"auth"`
	Permission PermissionConfig `yaml:"permission"`
	Voice      VoiceConfig      `yaml:"voice"`
	Collab     CollabConfig     `yaml:"collab"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GatewayConfig holds the WebSocket endpoint configuration.
type GatewayConfig struct {
	Endpoint string `yaml:"endpoint"` // e.g. wss://gateway.example.com/ws
}

// AuthConfig holds handshake credentials.
type AuthConfig struct {
	Token string `yaml:"token"`
	PIN   string `yaml:"pin"`
}

// PermissionConfig holds the permission workflow settings.
type PermissionConfig struct {
	Window time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	WindowRaw string `yaml:"window"`

	AutoApprove bool `yaml:"auto_approve"`
}

// VoiceConfig holds voice pipeline settings.
type VoiceConfig struct {
	Mode           string  `yaml:"mode"` // push_to_talk | vad | talk | wake_word
	SampleRate     int     `yaml:"sample_rate"`
	ChunkSamples   int     `yaml:"chunk_samples"`
	VadSensitivity float64 `yaml:"vad_sensitivity"`
	AutoPlayback   bool    `yaml:"auto_playback"`
	VoiceID        string  `yaml:"voice_id"`

	SilenceTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	SilenceTimeoutRaw string `yaml:"silence_timeout"`
}

// CollabConfig holds the external collaborator API base URL.
type CollabConfig struct {
	BaseURL string `yaml:"base_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Gateway.Endpoint == "" {
		return fmt.Errorf("gateway.endpoint is required")
	}

	if c.Auth.Token == "" && c.Auth.PIN == "" {
		return fmt.Errorf("auth.token or auth.pin is required")
	}

	if c.Voice.SampleRate < 0 || c.Voice.ChunkSamples < 0 {
		return fmt.Errorf("voice.sample_rate and voice.chunk_samples must not be negative")
	}

	if c.Voice.VadSensitivity < 0 || c.Voice.VadSensitivity > 1 {
		return fmt.Errorf("voice.vad_sensitivity must be between 0 and 1")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Permission.WindowRaw != "" {
		cfg.Permission.Window, err = time.ParseDuration(cfg.Permission.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing permission.window %q: %w", cfg.Permission.WindowRaw, err)
		}
	}

	if cfg.Voice.SilenceTimeoutRaw != "" {
		cfg.Voice.SilenceTimeout, err = time.ParseDuration(cfg.Voice.SilenceTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing voice.silence_timeout %q: %w", cfg.Voice.SilenceTimeoutRaw, err)
		}
	}

	return nil
}
